package viewmodel_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"

	"github.com/jgoulah/ecobuddy/internal/api"
	"github.com/jgoulah/ecobuddy/internal/api/apitest"
	"github.com/jgoulah/ecobuddy/internal/viewmodel"
	"github.com/jgoulah/ecobuddy/pkg/models"
)

// Thursday; the charted week runs Mon 2026-10-12 .. Sun 2026-10-18
var today = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type recordingView struct {
	ids       []int
	lookup    viewmodel.DeviceLookup
	loadErr   error
	charts    models.Charts
	history   []viewmodel.HistoryRow
	renders   int
	chartRuns int
}

func (v *recordingView) RenderDevices(ids []int, lookup viewmodel.DeviceLookup) {
	v.ids = ids
	v.lookup = lookup
	v.renders++
}

func (v *recordingView) RenderLoadError(err error) { v.loadErr = err }

func (v *recordingView) RenderCharts(c models.Charts) {
	v.charts = c
	v.chartRuns++
}

func (v *recordingView) RenderHistory(_ models.Device, h []viewmodel.HistoryRow) { v.history = h }

type ViewModelSuite struct {
	suite.Suite
	srv    *apitest.Server
	client *api.Client
	view   *recordingView
	vm   *viewmodel.ViewModel
	logs *test.Hook
	ctx  context.Context
}

func (s *ViewModelSuite) SetupTest() {
	s.ctx = context.Background()
	s.srv = apitest.NewServer("me@example.com", "pw")

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s.logs = hook

	client, err := api.New(s.srv.URL, api.WithLogger(logger))
	s.Require().NoError(err)
	s.Require().NoError(client.Login(s.ctx, s.srv.Email, s.srv.Password))
	s.client = client

	s.view = &recordingView{}
	s.vm = viewmodel.New(client, s.view,
		viewmodel.WithLogger(logger),
		viewmodel.WithClock(func() time.Time { return today }))
}

func (s *ViewModelSuite) TearDownTest() {
	s.srv.Close()
}

func TestViewModelSuite(t *testing.T) {
	suite.Run(t, new(ViewModelSuite))
}

func (s *ViewModelSuite) TestLoadDevicesRendersServerList() {
	fridge := s.srv.AddDevice("Fridge", models.Electric, 0.2)
	tap := s.srv.AddDevice("Tap", models.Water, 6)

	s.Require().NoError(s.vm.LoadDevices(s.ctx))

	s.Equal([]int{fridge.ID, tap.ID}, s.view.ids)
	got, ok := s.view.lookup.Device(tap.ID)
	s.True(ok)
	s.Equal(tap, got)
	s.Nil(s.vm.LoadError())
}

func (s *ViewModelSuite) TestFailedLoadNeverShowsStaleList() {
	s.srv.AddDevice("Fridge", models.Electric, 0.2)
	s.Require().NoError(s.vm.LoadDevices(s.ctx))
	s.Len(s.vm.Devices(), 1)

	s.srv.Fail = http.StatusInternalServerError
	s.srv.FailMessage = "database unavailable"

	err := s.vm.LoadDevices(s.ctx)
	s.Require().Error(err)
	s.Empty(s.view.ids)
	s.Empty(s.vm.Devices())
	s.EqualError(s.view.loadErr, "database unavailable")
	s.NotNil(s.vm.LoadError())
}

func (s *ViewModelSuite) TestCreateDeviceValidationSendsNothing() {
	before := s.srv.TotalRequests()

	cases := []struct {
		name, kind string
		rating     float64
		field      string
	}{
		{"Heater", "electric", 0, "rating"},
		{"Heater", "electric", -1.5, "rating"},
		{"   ", "electric", 2, "name"},
		{"Heater", "", 2, "type"},
		{"Heater", "gas", 2, "type"},
	}
	for _, tc := range cases {
		_, err := s.vm.CreateDevice(s.ctx, tc.name, tc.kind, tc.rating)
		var verr *viewmodel.ValidationError
		s.Require().True(errors.As(err, &verr), "case %+v", tc)
		s.Equal(tc.field, verr.Field)
	}

	s.Equal(before, s.srv.TotalRequests())
	s.Empty(s.vm.Devices())
}

func (s *ViewModelSuite) TestCreateDeviceAppendsServerRecord() {
	s.srv.AddDevice("Fridge", models.Electric, 0.2)
	s.Require().NoError(s.vm.LoadDevices(s.ctx))

	created, err := s.vm.CreateDevice(s.ctx, " Washer ", "water", 12)
	s.Require().NoError(err)

	s.Equal(2, created.ID)
	s.Equal("Washer", created.Name)
	s.Equal("L/min", created.Unit)

	devices := s.vm.Devices()
	s.Len(devices, 2)
	s.Equal(created, devices[1])
	s.Equal([]int{1, 2}, s.view.ids)
}

func (s *ViewModelSuite) TestCreateDeviceFailureLeavesListUnchanged() {
	s.Require().NoError(s.vm.LoadDevices(s.ctx))
	renders := s.view.renders

	s.srv.Fail = http.StatusBadRequest
	s.srv.FailMessage = "Missing required fields"

	_, err := s.vm.CreateDevice(s.ctx, "Washer", "water", 12)
	s.Require().Error(err)
	s.Contains(err.Error(), "Missing required fields")

	var serr *api.ServerError
	s.True(errors.As(err, &serr))
	s.Empty(s.vm.Devices())
	s.Equal(renders, s.view.renders)
}

func (s *ViewModelSuite) TestDeleteDeviceRemovesAndResetsCharts() {
	heater := s.srv.AddDevice("Heater", models.Electric, 2)
	shower := s.srv.AddDevice("Shower", models.Water, 9)
	s.srv.SetUsage(heater.ID, "2026-10-13", 3)
	s.Require().NoError(s.vm.LoadDevices(s.ctx))

	_, err := s.vm.SelectDevice(s.ctx, heater.ID)
	s.Require().NoError(err)
	s.False(s.vm.Charts().Electric.IsZero())

	s.Require().NoError(s.vm.DeleteDevice(s.ctx, shower.ID))

	_, ok := s.vm.Device(shower.ID)
	s.False(ok)
	s.Equal([]int{heater.ID}, s.view.ids)

	charts := s.vm.Charts()
	for _, t := range models.ResourceTypes {
		s.Equal(models.Series{0, 0, 0, 0, 0, 0, 0}, charts.Get(t))
	}
	s.Equal(0, charts.Active)
	s.Equal(charts, s.view.charts)
}

func (s *ViewModelSuite) TestDeleteDeviceFailureKeepsList() {
	heater := s.srv.AddDevice("Heater", models.Electric, 2)
	s.Require().NoError(s.vm.LoadDevices(s.ctx))

	s.srv.Fail = http.StatusForbidden
	err := s.vm.DeleteDevice(s.ctx, heater.ID)
	s.Require().Error(err)
	s.Contains(err.Error(), "request failed with status 403")

	_, ok := s.vm.Device(heater.ID)
	s.True(ok)
}

func (s *ViewModelSuite) TestSelectWaterDeviceOnlyUpdatesWaterChart() {
	heater := s.srv.AddDevice("Heater", models.Electric, 2)
	shower := s.srv.AddDevice("Shower", models.Water, 1.5)
	s.srv.SetUsage(heater.ID, "2026-10-12", 4)
	s.srv.SetUsage(shower.ID, "2026-10-12", 3)   // Mon
	s.srv.SetUsage(shower.ID, "2026-10-18", 1)   // Sun
	s.srv.SetUsage(shower.ID, "2026-10-05", 100) // previous week, not charted
	s.Require().NoError(s.vm.LoadDevices(s.ctx))

	_, err := s.vm.SelectDevice(s.ctx, heater.ID)
	s.Require().NoError(err)

	series, err := s.vm.SelectDevice(s.ctx, shower.ID)
	s.Require().NoError(err)

	s.Equal(models.Series{4.5, 0, 0, 0, 0, 0, 1.5}, series)
	charts := s.vm.Charts()
	s.Equal(series, charts.Water)
	s.True(charts.Electric.IsZero())
	s.True(charts.Waste.IsZero())
	s.Equal(shower.ID, charts.Active)
	s.Equal(charts, s.view.charts)
}

func (s *ViewModelSuite) TestSelectUnknownDevice() {
	_, err := s.vm.SelectDevice(s.ctx, 42)
	var verr *viewmodel.ValidationError
	s.True(errors.As(err, &verr))
	s.Equal(0, s.srv.Requests("GET /api/devices/{id}/usage"))
}

func (s *ViewModelSuite) TestRecordUsageOverwritesSameDate() {
	shower := s.srv.AddDevice("Shower", models.Water, 1.5)
	s.Require().NoError(s.vm.LoadDevices(s.ctx))

	day := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	_, err := s.vm.RecordUsage(s.ctx, shower.ID, day.AddDate(0, 0, -1), 2)
	s.Require().NoError(err)
	_, err = s.vm.RecordUsage(s.ctx, shower.ID, day, 1)
	s.Require().NoError(err)

	history, err := s.vm.RecordUsage(s.ctx, shower.ID, day, 3)
	s.Require().NoError(err)

	s.Require().Len(history, 2)
	s.Equal(day, history[0].Date)
	s.Equal(3.0, history[0].Hours)
	s.Equal("4.50", history[0].FormattedUsage())
	s.Equal("3.00", history[1].FormattedUsage())
	s.Equal(history, s.view.history)
}

func (s *ViewModelSuite) TestRecordUsageValidation() {
	shower := s.srv.AddDevice("Shower", models.Water, 1.5)
	s.Require().NoError(s.vm.LoadDevices(s.ctx))
	before := s.srv.TotalRequests()

	_, err := s.vm.RecordUsage(s.ctx, shower.ID, time.Time{}, 2)
	s.Error(err)
	_, err = s.vm.RecordUsage(s.ctx, shower.ID, today, 0)
	s.Error(err)

	s.Equal(before, s.srv.TotalRequests())
}

func (s *ViewModelSuite) TestChatAndInsights() {
	_, err := s.vm.Chat(s.ctx, "  ")
	s.Error(err)
	s.Equal(0, s.srv.Requests("POST /chat_with_gemini"))

	reply, err := s.vm.Chat(s.ctx, "tips?")
	s.Require().NoError(err)
	s.Equal(s.srv.ChatReply, reply)

	s.srv.InsightText = ""
	_, err = s.vm.Insights(s.ctx)
	s.Require().Error(err)
	s.Contains(err.Error(), "No device data available")
}

func (s *ViewModelSuite) TestFailuresAreLogged() {
	s.srv.Fail = http.StatusInternalServerError
	s.Error(s.vm.LoadDevices(s.ctx))

	entry := s.logs.LastEntry()
	s.Require().NotNil(entry)
	s.Equal(logrus.WarnLevel, entry.Level)
	s.Equal("loading devices failed", entry.Message)
}

func (s *ViewModelSuite) TestFailedLoadClearsCharts() {
	heater := s.srv.AddDevice("Heater", models.Electric, 2)
	s.srv.SetUsage(heater.ID, "2026-10-13", 3)
	s.Require().NoError(s.vm.LoadDevices(s.ctx))
	_, err := s.vm.SelectDevice(s.ctx, heater.ID)
	s.Require().NoError(err)
	s.Equal(heater.ID, s.vm.Charts().Active)

	s.srv.Fail = http.StatusInternalServerError
	s.Require().Error(s.vm.LoadDevices(s.ctx))

	charts := s.vm.Charts()
	s.Equal(0, charts.Active)
	s.True(charts.Electric.IsZero())
	s.Equal(charts, s.view.charts)
}

func (s *ViewModelSuite) TestReloadWithoutChartedDeviceClearsCharts() {
	heater := s.srv.AddDevice("Heater", models.Electric, 2)
	tap := s.srv.AddDevice("Tap", models.Water, 6)
	s.srv.SetUsage(heater.ID, "2026-10-13", 3)
	s.Require().NoError(s.vm.LoadDevices(s.ctx))
	_, err := s.vm.SelectDevice(s.ctx, heater.ID)
	s.Require().NoError(err)

	// removed by another session
	s.Require().NoError(s.client.DeleteDevice(s.ctx, heater.ID))
	s.Require().NoError(s.vm.LoadDevices(s.ctx))

	s.Equal([]int{tap.ID}, s.view.ids)
	charts := s.vm.Charts()
	s.Equal(0, charts.Active)
	s.True(charts.Electric.IsZero())
	s.Equal(charts, s.view.charts)
}

func (s *ViewModelSuite) TestReloadKeepsChartOfListedDevice() {
	heater := s.srv.AddDevice("Heater", models.Electric, 2)
	s.srv.SetUsage(heater.ID, "2026-10-13", 3)
	s.Require().NoError(s.vm.LoadDevices(s.ctx))
	_, err := s.vm.SelectDevice(s.ctx, heater.ID)
	s.Require().NoError(err)
	chartRuns := s.view.chartRuns

	s.Require().NoError(s.vm.LoadDevices(s.ctx))

	s.Equal(heater.ID, s.vm.Charts().Active)
	s.Equal(chartRuns, s.view.chartRuns)
}

func (s *ViewModelSuite) TestConcurrentOperations() {
	heater := s.srv.AddDevice("Heater", models.Electric, 2)
	s.srv.SetUsage(heater.ID, "2026-10-13", 3)
	s.Require().NoError(s.vm.LoadDevices(s.ctx))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers*3)
	for i := 0; i < workers; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, err := s.vm.CreateDevice(s.ctx, "Lamp", "electric", 0.1)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := s.vm.SelectDevice(s.ctx, heater.ID)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			errs <- s.vm.LoadDevices(s.ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	s.Require().NoError(s.vm.LoadDevices(s.ctx))
	s.Len(s.vm.Devices(), workers+1)
	s.Equal(workers, s.srv.Requests("POST /api/devices"))
}
