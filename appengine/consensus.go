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

package server

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/appengine"

	"github.com/googlegenomics/consensus/api"
	"github.com/googlegenomics/consensus/consensus"
	"github.com/googlegenomics/consensus/internal/storage"
	"github.com/googlegenomics/consensus/vote"
)

func init() {
	algorithm := os.Getenv("CONSENSUS_ALGORITHM")
	if algorithm == "" {
		algorithm = vote.DefaultAlgorithm
	}
	server, err := api.NewServer(newAppEngineClient, algorithm, consensus.Config{})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	if list := os.Getenv("BUCKET_WHITELIST"); list != "" {
		server.Whitelist(strings.Split(list, ","))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	server.Export(router)
	http.Handle("/", router)
}

func newAppEngineClient(req *http.Request) (storage.Client, http.Header, error) {
	return storage.NewClientFromBearerToken(req.WithContext(appengine.NewContext(req)))
}
