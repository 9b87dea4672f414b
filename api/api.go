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

// Package api implements the consensus HTTP API.
//
// POST /consensus computes the consensus of a contig sent in the request
// body.  POST /differential reports where read groups disagree with the
// consensus.  GET /consensus/{bucket}/{object} computes the consensus of a
// contig held in storage.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/googleapi"

	"github.com/googlegenomics/consensus/consensus"
	"github.com/googlegenomics/consensus/internal/storage"
	"github.com/googlegenomics/consensus/vote"
)

const (
	consensusPath    = "/consensus"
	differentialPath = "/differential"
)

var (
	errInvalidOrUnspecifiedID = errors.New("invalid or unspecified ID")
	errMissingReferenceName   = errors.New("no reference name specified")
)

// NewStorageClientFunc is the type of function that constructs the appropriate
// storage client to satisfy the incoming request.
type NewStorageClientFunc func(*http.Request) (storage.Client, http.Header, error)

// Server provides the consensus API.  Must be created with NewServer.
type Server struct {
	newStorageClient NewStorageClientFunc
	algorithm        string
	config           consensus.Config
	whitelist        map[string]bool
}

// NewServer returns a new Server that computes consensus sequences with the
// named voting algorithm and config unless a request overrides them.  The
// server will call newStorageClient on each request for a stored contig.
func NewServer(newStorageClient NewStorageClientFunc, algorithm string, config consensus.Config) (*Server, error) {
	if _, err := vote.Lookup(algorithm); err != nil {
		return nil, err
	}
	if config.MaxNormalReadLength <= 0 {
		config.MaxNormalReadLength = consensus.DefaultMaxNormalReadLength
	}
	return &Server{newStorageClient, algorithm, config, make(map[string]bool)}, nil
}

// Whitelist adds buckets to the set of buckets which the server is allowed to
// access. If Whitelist is never called for a given Server then reads from any
// bucket are allowed.
func (server *Server) Whitelist(buckets []string) {
	for _, bucket := range buckets {
		server.whitelist[bucket] = true
	}
}

// Export registers the API endpoints with router.
func (server *Server) Export(router gin.IRoutes) {
	router.Use(forwardOrigin)
	router.POST(consensusPath, server.serveConsensus)
	router.POST(differentialPath, server.serveDifferential)
	router.GET(consensusPath+"/*id", server.serveStoredConsensus)
}

func (server *Server) checkWhitelist(bucket string) error {
	if len(server.whitelist) == 0 || server.whitelist[bucket] {
		return nil
	}
	return fmt.Errorf("access to bucket %s is not allowed", bucket)
}

// engine returns the voter factory and engine configuration selected by the
// query parameters of c.
func (server *Server) engine(c *gin.Context) (consensus.VoterFactory, consensus.Config, error) {
	config := server.config
	algorithm := c.DefaultQuery("algorithm", server.algorithm)
	factory, err := vote.Lookup(algorithm)
	if err != nil {
		return nil, config, newInvalidInputError("selecting algorithm", err)
	}

	if value := c.Query("max_normal_read_length"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return nil, config, newInvalidInputError("parsing max_normal_read_length", fmt.Errorf("invalid length %q", value))
		}
		config.MaxNormalReadLength = n
	}
	return factory, config, nil
}

// parseID parses path and returns a GCS bucket and object, or an error.
func parseID(path string) (string, string, error) {
	if parts := strings.SplitN(path, "/", 2); len(parts) == 2 {
		if parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], nil
		}
	}
	return "", "", errInvalidOrUnspecifiedID
}

// apiError is used to capture errors that have been defined in the API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func newApiError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %v", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newApiError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newApiError("InvalidInput", http.StatusBadRequest, context, err)
}

func newInvalidRangeError(err error) error {
	return &apiError{"InvalidRange", http.StatusBadRequest, err}
}

func newPermissionDeniedError(context string, err error) error {
	return newApiError("PermissionDenied", http.StatusForbidden, context, err)
}

func newNotFoundError(context string, err error) error {
	return newApiError("NotFound", http.StatusNotFound, context, err)
}

func newIncompleteAlignmentDataError(err error) error {
	return &apiError{"IncompleteAlignmentData", http.StatusUnprocessableEntity, err}
}

func newStorageError(context string, err error) error {
	if err == storage.ErrMissingOrInvalidToken {
		return newPermissionDeniedError(context, err)
	}
	if err == storage.ErrObjectNotExist {
		return newNotFoundError("object does not exist", err)
	}
	if err, ok := err.(*googleapi.Error); ok {
		switch err.Code {
		case http.StatusUnauthorized:
			return newInvalidAuthenticationError(context, err)
		case http.StatusForbidden:
			return newPermissionDeniedError(context, err)
		}
	}
	return fmt.Errorf("%s: %v", context, err)
}

// newEngineError classifies an error returned by the consensus engine.
func newEngineError(err error) error {
	switch {
	case errors.Is(err, consensus.ErrIncompleteAlignmentData):
		return newIncompleteAlignmentDataError(err)
	case errors.Is(err, consensus.ErrNoMappings), errors.Is(err, consensus.ErrBounds):
		return newInvalidInputError("computing consensus", err)
	}
	return err
}

// writeError writes either a JSON object or bare HTTP error describing err.
// A JSON object is written only when the error has a name and code defined
// by the API.
func writeError(c *gin.Context, err error) {
	if err, ok := err.(*apiError); ok {
		c.JSON(err.code, gin.H{
			"error":   err.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(err.code), err.cause),
		})
		return
	}
	c.String(http.StatusInternalServerError, "%s: %v", http.StatusText(http.StatusInternalServerError), err)
}

func forwardOrigin(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}
	c.Next()
}
