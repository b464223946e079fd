package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/modelreg/modelreg/cmd/cli/config"
)

// client is a thin HTTP wrapper over the registry API
type client struct {
	baseURL string
	actor   string
	http    *http.Client
}

func newClient() (*client, error) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		return nil, err
	}

	return &client{
		baseURL: cfg.ServerURL,
		actor:   cfg.Actor,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// do issues a request and decodes the JSON response into out (unless nil)
func (c *client) do(method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+"/api/v1"+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Actor", c.actor)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Code != "" {
			if apiErr.Error.Details != "" {
				return fmt.Errorf("%s: %s (%s)", apiErr.Error.Code, apiErr.Error.Message, apiErr.Error.Details)
			}
			return fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *client) doJSON(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}
	return c.do(method, path, body, "application/json", out)
}

func printJSON(value interface{}) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
