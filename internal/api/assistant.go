package api

import (
	"context"
	"fmt"
	"net/http"
)

// Chat relays a message to the server's AI assistant and returns its reply
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	req := struct {
		Message string `json:"message"`
	}{Message: message}

	var resp struct {
		GeminiResponse string `json:"gemini_response"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("chat_with_gemini"), req, &resp); err != nil {
		return "", err
	}
	return resp.GeminiResponse, nil
}

// Insights fetches the server-generated conservation insights
func (c *Client) Insights(ctx context.Context) (string, error) {
	var resp struct {
		Success  bool   `json:"success"`
		Insights string `json:"insights"`
		Error    string `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("api", "insights"), nil, &resp); err != nil {
		return "", err
	}

	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "insights are not available"
		}
		return "", &ServerError{StatusCode: http.StatusOK, Message: msg}
	}
	if resp.Insights == "" {
		return "", fmt.Errorf("server returned empty insights")
	}
	return resp.Insights, nil
}
