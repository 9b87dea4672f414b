// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package analytics provides functions for sending data to Google Analytics.
package analytics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultEndpoint  = "https://www.google-analytics.com/"
	defaultBatchSize = 20 // The maximum number supported by batch endpoint.
)

// Hit represents a single analytics event (called a 'hit').
type Hit map[string]string

// Event generates a new event typed hit.  The label may be empty and the
// value may be nil but category and action are required.
func Event(category, action, label string, value *int64) Hit {
	hit := Hit{
		"t":  "event",
		"ec": category,
		"ea": action,
	}
	if label != "" {
		hit["el"] = label
	}
	if value != nil {
		hit["ev"] = strconv.FormatInt(*value, 10)
	}
	return hit
}

// Timing generates a user timing hit reporting elapsed in milliseconds.  The
// label may be empty.
func Timing(category, variable, label string, elapsed time.Duration) Hit {
	hit := Hit{
		"t":   "timing",
		"utc": category,
		"utv": variable,
		"utt": strconv.FormatInt(int64(elapsed/time.Millisecond), 10),
	}
	if label != "" {
		hit["utl"] = label
	}
	return hit
}

// Client defines a type for communicating with Google Analytics.  To create a
// properly initialized Client instance, use NewClient.
type Client struct {
	propertyID string
	clientID   string
	endpoint   string
	batchSize  int
}

// NewClient returns a Client sends hits to analytics using the provided IDs.
func NewClient(propertyID, clientID string) *Client {
	return &Client{propertyID, clientID, defaultEndpoint, defaultBatchSize}
}

// Send attempts to upload the provided hits to the analytics server.
func (c *Client) Send(hits []Hit) error {
	if len(hits) > 0 {
		if err := c.upload(hits); err != nil {
			return fmt.Errorf("uploading hits: %v", err)
		}
	}
	return nil
}

func (c *Client) upload(hits []Hit) error {
	for i := 0; i < len(hits); i += c.batchSize {
		start, end := i, i+c.batchSize
		if end > len(hits) {
			end = len(hits)
		}

		var body bytes.Buffer
		for _, hit := range hits[start:end] {
			payload := url.Values{
				"v":   []string{"1"},
				"tid": []string{c.propertyID},
				"cid": []string{c.clientID},
			}
			for key, value := range hit {
				payload.Add(key, value)
			}
			body.WriteString(payload.Encode())
			body.WriteByte('\n')
		}

		request, err := http.NewRequest("POST", c.endpoint+"/batch", &body)
		if err != nil {
			return fmt.Errorf("creating request: %v", err)
		}
		response, err := http.DefaultClient.Do(request)
		if err != nil {
			return fmt.Errorf("sending request: %v", err)
		}
		response.Body.Close()
		if response.StatusCode != 200 {
			return fmt.Errorf("unexpected response status: %v", response.Status)
		}
	}
	return nil
}

type contextKey int

var (
	hitsKey = contextKey(1)
)

// hits collects the hits of one request or batch run.  Batch workers share a
// single collection, so appends are serialized.
type hits struct {
	mu   sync.Mutex
	list []Hit
}

func (h *hits) add(hit Hit) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.list = append(h.list, hit)
}

// WithTracking returns a context for use with TrackerFromContext and a
// function that returns the hits tracked so far.
func WithTracking(ctx context.Context) (context.Context, func() []Hit) {
	h := &hits{}
	return context.WithValue(ctx, hitsKey, h), func() []Hit {
		h.mu.Lock()
		defer h.mu.Unlock()
		return append([]Hit(nil), h.list...)
	}
}

// TrackingHandler returns a new http.Handler which wraps the provided
// handler.  The wrapper prepares the incoming request's context for use with
// the TrackerFromContext function.  When the underlying handler completes,
// the track function is invoked with any hits accumulated during the request.
func TrackingHandler(handler http.Handler, track func([]Hit)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, collected := WithTracking(req.Context())
		handler.ServeHTTP(w, req.WithContext(ctx))
		track(collected())
	})
}

// Middleware is the gin equivalent of TrackingHandler.
func Middleware(track func([]Hit)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, collected := WithTracking(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		track(collected())
	}
}

// TrackerFromContext is intended to be used with contexts that are generated
// by WithTracking, TrackingHandler or Middleware.  It returns a function that
// buffers hits to be delivered with the others of the same context.
func TrackerFromContext(ctx context.Context) func(Hit) {
	if h, ok := ctx.Value(hitsKey).(*hits); ok {
		return h.add
	}
	return func(Hit) {}
}
