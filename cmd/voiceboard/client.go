package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// apiClient talks to a running daemon.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(cmd *cobra.Command) *apiClient {
	addr, _ := cmd.Flags().GetString("addr")
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *apiClient) do(method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s (is 'voiceboard serve' running?): %w", c.base, err)
	}
	return resp, nil
}

// getJSON issues a GET and decodes the response into out.
func (c *apiClient) getJSON(path string, out any) error {
	resp, err := c.do(http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// postJSON issues a POST with an optional JSON body and decodes into out.
func (c *apiClient) postJSON(path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}
	resp, err := c.do(http.MethodPost, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *apiClient) putJSON(path string, raw []byte, out any) error {
	resp, err := c.do(http.MethodPut, path, bytes.NewReader(raw), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *apiClient) delete(path string, out any) error {
	resp, err := c.do(http.MethodDelete, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// download streams a GET response into a local file, honoring the
// server-suggested filename when target is empty.
func (c *apiClient) download(path, target string) (string, int64, error) {
	resp, err := c.do(http.MethodGet, path, nil, "")
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, responseError(resp)
	}

	if target == "" {
		target = suggestedFileName(resp.Header.Get("Content-Disposition"))
	}
	f, err := os.Create(target)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return "", 0, err
	}
	return target, n, nil
}

// upload POSTs a local file as a multipart form.
func (c *apiClient) upload(path, filePath string, fields map[string]string, out any) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("archive", filePath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return err
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := c.do(http.MethodPost, path, &form, mw.FormDataContentType())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s", payload.Error)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}

// suggestedFileName pulls the filename out of a Content-Disposition
// header, with a timestamped fallback.
func suggestedFileName(disposition string) string {
	const marker = `filename="`
	if i := strings.Index(disposition, marker); i >= 0 {
		rest := disposition[i+len(marker):]
		if j := strings.Index(rest, `"`); j > 0 {
			return rest[:j]
		}
	}
	return "voiceboard-backup-" + time.Now().Format("2006-01-02") + ".zip"
}
