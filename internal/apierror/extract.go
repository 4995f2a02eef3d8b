package apierror

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractMessage turns a non-OK provider response into a single
// user-facing string of the form "API error (<status>): <detail>".
//
// Providers disagree wildly on error body shape, so the body is probed in
// a fixed order: the Gemini array form [{error:{message}}], then an object
// form where the detail may live under message (as a string or a nested
// {detail}/{error} object), error.message, a bare error string, or a
// detail string. When nothing usable is found, or the body is not JSON at
// all, the HTTP status text stands in for the detail.
//
// Pure function of status + body; never panics.
func ExtractMessage(status int, statusText string, body []byte) string {
	detail := extractDetail(body)
	detail = strings.TrimPrefix(detail, "* ")
	if detail == "" {
		detail = statusText
	}
	return fmt.Sprintf("API error (%d): %s", status, detail)
}

func extractDetail(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var parsed interface{}
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return ""
	}

	switch v := parsed.(type) {
	case []interface{}:
		// Gemini wraps the error object in a one-element array.
		if len(v) == 0 {
			return ""
		}
		obj, ok := v[0].(map[string]interface{})
		if !ok {
			return ""
		}
		if errObj, ok := obj["error"].(map[string]interface{}); ok {
			if msg, ok := errObj["message"].(string); ok {
				return msg
			}
		}
		return ""
	case map[string]interface{}:
		return detailFromObject(v)
	}
	return ""
}

func detailFromObject(obj map[string]interface{}) string {
	switch m := obj["message"].(type) {
	case string:
		if m != "" {
			return m
		}
	case map[string]interface{}:
		if d, ok := m["detail"].(string); ok && d != "" {
			return d
		}
		if e, ok := m["error"].(string); ok && e != "" {
			return e
		}
	}

	switch e := obj["error"].(type) {
	case map[string]interface{}:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	case string:
		if e != "" {
			return e
		}
	}

	if d, ok := obj["detail"].(string); ok && d != "" {
		return d
	}
	return ""
}
