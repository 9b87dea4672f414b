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

package analytics

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestClient_Send_Batches(t *testing.T) {
	var requests int
	client, quit := fakeBackend(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	})
	defer close(quit)

	var hits []Hit
	for i := 0; i < client.batchSize*3+1; i++ {
		hits = append(hits, Event("Consensus", "Contig Processed", "", nil))
	}
	if err := client.Send(hits); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got, want := requests, 4; got != want {
		t.Errorf("Wrong number of requests: got %d, want %d", got, want)
	}
}

func TestClient_Send_VerifyPayloads(t *testing.T) {
	var payloads []string

	client, quit := fakeBackend(func(w http.ResponseWriter, req *http.Request) {
		scanner := bufio.NewScanner(req.Body)
		for scanner.Scan() {
			payloads = append(payloads, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			t.Fatalf("Failed to read request body: %v", err)
		}

		w.WriteHeader(http.StatusOK)
	})
	defer close(quit)

	var hits []Hit
	for i := int64(0); i < 5; i++ {
		hits = append(hits, Event("Consensus", "Contig Processed", fmt.Sprintf("%d", i), &i))
		hits = append(hits, Timing("Consensus", "Contig", fmt.Sprintf("%d", i), time.Duration(i)*time.Second))
	}

	if err := client.Send(hits); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got, want := len(payloads), len(hits); got != want {
		t.Fatalf("Wrong number of payloads: got %d, want %d", got, want)
	}

	for i, payload := range payloads {
		got, err := url.ParseQuery(payload)
		if err != nil {
			t.Errorf("Failed to parse payload: %q: %v", payload, err)
		}

		want := url.Values{
			"v":   []string{"1"},
			"cid": []string{client.clientID},
			"tid": []string{client.propertyID},
		}
		for key, value := range hits[i] {
			want.Add(key, value)
		}

		if !reflect.DeepEqual(got, want) {
			t.Errorf("Wrong payload for hit %d: got %v, want %v", i, got, want)
		}
	}
}

func TestClient_Send_Failure(t *testing.T) {
	client, quit := fakeBackend(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer close(quit)

	if err := client.Send([]Hit{Event("Consensus", "test", "", nil)}); err == nil {
		t.Error("Send succeeded despite a failing backend")
	}
	if err := client.Send(nil); err != nil {
		t.Errorf("Send of no hits failed: %v", err)
	}
}

func TestEvent_OptionalParameters(t *testing.T) {
	if got, want := Event("tests", "test", "", nil)["t"], "event"; got != want {
		t.Errorf("Wrong hit type: got %q, want %q", got, want)
	}
	if _, ok := Event("tests", "test", "", nil)["el"]; ok {
		t.Error("Label parameter was added for empty label")
	}
	if _, ok := Event("tests", "test", "", nil)["ev"]; ok {
		t.Error("Value parameter was added for empty value")
	}
}

func TestTiming(t *testing.T) {
	testCases := []struct {
		name    string
		label   string
		elapsed time.Duration
		want    Hit
	}{
		{"unlabelled", "", 1500 * time.Millisecond, Hit{"t": "timing", "utc": "Consensus", "utv": "Contig", "utt": "1500"}},
		{"labelled", "quality", 999 * time.Microsecond, Hit{"t": "timing", "utc": "Consensus", "utv": "Contig", "utt": "0", "utl": "quality"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Timing("Consensus", "Contig", tc.label, tc.elapsed); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Wrong hit: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTrackingHandler(t *testing.T) {
	want := []Hit{
		Event("tests", "test", "a", nil),
		Event("tests", "test", "b", nil),
	}

	handler := http.HandlerFunc(func(_ http.ResponseWriter, req *http.Request) {
		track := TrackerFromContext(req.Context())
		for i := range want {
			track(want[i])
		}
	})

	var got []Hit
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	TrackingHandler(handler, func(hits []Hit) { got = hits }).ServeHTTP(w, req)

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Wrong hits: got %v, want %v", got, want)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var got []Hit
	router := gin.New()
	router.Use(Middleware(func(hits []Hit) { got = hits }))
	router.GET("/test", func(c *gin.Context) {
		TrackerFromContext(c.Request.Context())(Event("tests", "test", "gin", nil))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []Hit{Event("tests", "test", "gin", nil)}, got)
}

func TestWithTracking_Concurrent(t *testing.T) {
	ctx, collected := WithTracking(context.Background())
	track := TrackerFromContext(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				track(Event("tests", "test", "", nil))
			}
		}()
	}
	wg.Wait()

	if got, want := len(collected()), 800; got != want {
		t.Errorf("Wrong number of hits: got %d, want %d", got, want)
	}
}

func TestTrackerFromContext_WithEmptyContextIsNotNil(t *testing.T) {
	ctx := context.Background()
	if track := TrackerFromContext(ctx); track == nil {
		t.Error("TrackerFromContext returned nil")
	}
}

func fakeBackend(handler http.HandlerFunc) (*Client, chan<- struct{}) {
	server := httptest.NewServer(handler)
	quit := make(chan struct{})
	go func() {
		<-quit
		server.Close()
	}()

	client := NewClient("UA-TEST123", "0001-0002-0003-0004")
	client.endpoint = server.URL

	return client, quit
}
