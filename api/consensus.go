// Copyright 2019 Google Inc.
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

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/googlegenomics/consensus/consensus"
	"github.com/googlegenomics/consensus/internal/analytics"
	"github.com/googlegenomics/consensus/internal/contig"
	"github.com/googlegenomics/consensus/internal/genomics"
	"github.com/googlegenomics/consensus/internal/readgroup"
	"github.com/googlegenomics/consensus/internal/sam"
	"github.com/googlegenomics/consensus/internal/source"
)

// ConsensusResponse is the body returned by the consensus endpoints.
type ConsensusResponse struct {
	ContigID       int    `json:"contig_id"`
	Name           string `json:"name,omitempty"`
	Start          int    `json:"start"`
	Finish         int    `json:"finish"`
	Sequence       string `json:"sequence"`
	Quality        []int  `json:"quality"`
	MaxDepth       int    `json:"max_depth"`
	NormalReads    int    `json:"normal_reads"`
	OversizedReads int    `json:"oversized_reads"`
}

// DifferentialRequest is the body accepted by the differential endpoint.
type DifferentialRequest struct {
	Contig    json.RawMessage `json:"contig" binding:"required"`
	Groups    []string        `json:"groups" binding:"required"`
	Exclusive bool            `json:"exclusive"`
}

// DivergenceResponse describes one divergence.
type DivergenceResponse struct {
	Position     int    `json:"position"`
	Group        string `json:"group"`
	DefaultBase  string `json:"default_base"`
	DefaultScore int    `json:"default_score"`
	DefaultReads int    `json:"default_reads"`
	GroupBase    string `json:"group_base"`
	GroupScore   int    `json:"group_score"`
	GroupReads   int    `json:"group_reads"`
}

// DifferentialResponse is the body returned by the differential endpoint.
type DifferentialResponse struct {
	ContigID    int                  `json:"contig_id"`
	Start       int                  `json:"start"`
	Finish      int                  `json:"finish"`
	GroupReads  map[string]int       `json:"group_reads"`
	Divergences []DivergenceResponse `json:"divergences"`
}

func (server *Server) serveConsensus(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("Consensus", "Consensus Request Received", "", nil))

	ctg, err := contig.Decode(c.Request.Body)
	if err != nil {
		writeError(c, newInvalidInputError("parsing contig", err))
		return
	}
	server.respond(c, ctg)
}

func (server *Server) serveStoredConsensus(c *gin.Context) {
	ctx := c.Request.Context()
	track := analytics.TrackerFromContext(ctx)
	track(analytics.Event("Consensus", "Stored Consensus Request Received", "", nil))

	bucket, object, err := parseID(strings.TrimPrefix(c.Param("id"), "/"))
	if err != nil {
		writeError(c, newInvalidInputError("parsing contig ID", err))
		return
	}

	if err := server.checkWhitelist(bucket); err != nil {
		writeError(c, newPermissionDeniedError("checking whitelist", err))
		return
	}

	if !source.Supported(object) {
		writeError(c, newInvalidInputError("parsing contig ID", fmt.Errorf("unsupported object %s", object)))
		return
	}

	gcs, _, err := server.newStorageClient(c.Request)
	if err != nil {
		writeError(c, newStorageError("creating client", err))
		return
	}

	data, err := gcs.NewObjectHandle(bucket, object).NewRangeReader(ctx, 0, -1)
	if err != nil {
		writeError(c, newStorageError("opening data", err))
		return
	}
	defer data.Close()

	var ctg *contig.Contig
	if strings.EqualFold(path.Ext(object), ".sam") {
		ctg, err = selectReference(data, c.Query("referenceName"))
	} else {
		ctg, err = contig.Decode(data)
		if err != nil {
			err = newInvalidInputError("parsing contig", err)
		}
	}
	if err != nil {
		writeError(c, err)
		return
	}
	server.respond(c, ctg)
}

// selectReference reads a SAM object and returns the contig built from the
// records mapped to the named reference.  The name may be omitted when only
// one reference has mapped records.
func selectReference(data io.Reader, name string) (*contig.Contig, error) {
	header, contigs, err := sam.ReadContigs(data)
	if err != nil {
		return nil, newInvalidInputError("parsing SAM", err)
	}
	if name == "" {
		if len(contigs) == 1 {
			return contigs[0], nil
		}
		return nil, newInvalidInputError("selecting contig", errMissingReferenceName)
	}
	id, err := header.ReferenceID(name)
	if err != nil {
		return nil, newNotFoundError("resolving reference", err)
	}
	for _, ctg := range contigs {
		if ctg.ID == id+1 {
			return ctg, nil
		}
	}
	return nil, newNotFoundError("selecting contig", fmt.Errorf("no reads mapped to %s", name))
}

func (server *Server) respond(c *gin.Context, ctg *contig.Contig) {
	track := analytics.TrackerFromContext(c.Request.Context())

	region, err := genomics.ParseRegion(c.Query("start"), c.Query("end"))
	if err != nil {
		writeError(c, newInvalidRangeError(err))
		return
	}

	factory, config, err := server.engine(c)
	if err != nil {
		writeError(c, err)
		return
	}

	started := time.Now()
	result, err := consensus.NewEngine(factory, config).Calculate(ctg.Intervals())
	if err != nil {
		track(analytics.Event("Consensus", "Consensus Error", "", nil))
		writeError(c, newEngineError(err))
		return
	}
	track(analytics.Timing("Consensus", "Calculate", "", time.Since(started)))

	result, err = region.Apply(result)
	if err != nil {
		writeError(c, newInvalidRangeError(err))
		return
	}

	c.JSON(http.StatusOK, newConsensusResponse(ctg, result))
	length := int64(result.Len())
	track(analytics.Event("Consensus", "Consensus Length", "", &length))
	track(analytics.Event("Consensus", "Consensus Response Sent", "", nil))
}

func newConsensusResponse(ctg *contig.Contig, result *consensus.Consensus) *ConsensusResponse {
	quality := make([]int, len(result.Quality))
	for i, q := range result.Quality {
		quality[i] = int(q)
	}
	return &ConsensusResponse{
		ContigID:       ctg.ID,
		Name:           ctg.Name,
		Start:          result.Start,
		Finish:         result.Finish,
		Sequence:       string(result.DNA),
		Quality:        quality,
		MaxDepth:       result.MaxDepth,
		NormalReads:    result.NormalReads,
		OversizedReads: result.OversizedReads,
	}
}

func (server *Server) serveDifferential(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("Differential", "Differential Request Received", "", nil))

	var request DifferentialRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		writeError(c, newInvalidInputError("parsing request", err))
		return
	}
	ctg, err := contig.Decode(bytes.NewReader(request.Contig))
	if err != nil {
		writeError(c, newInvalidInputError("parsing contig", err))
		return
	}
	groups, err := readgroup.ParseAll(request.Groups)
	if err != nil {
		writeError(c, newInvalidInputError("parsing groups", err))
		return
	}

	factory, config, err := server.engine(c)
	if err != nil {
		writeError(c, err)
		return
	}
	config.ExclusiveGroups = request.Exclusive

	result, err := consensus.NewEngine(factory, config).Differential(ctg.Intervals(), groups)
	if err != nil {
		writeError(c, newEngineError(err))
		return
	}

	response := &DifferentialResponse{
		ContigID:    ctg.ID,
		Start:       result.Start,
		Finish:      result.Finish,
		GroupReads:  make(map[string]int),
		Divergences: make([]DivergenceResponse, 0, len(result.Divergences)),
	}
	for i, g := range groups {
		response.GroupReads[g.Name()] += result.GroupReads[i]
	}
	for _, d := range result.Divergences {
		response.Divergences = append(response.Divergences, DivergenceResponse{
			Position:     d.Position,
			Group:        d.GroupName,
			DefaultBase:  string(d.DefaultBase),
			DefaultScore: d.DefaultScore,
			DefaultReads: d.DefaultReads,
			GroupBase:    string(d.GroupBase),
			GroupScore:   d.GroupScore,
			GroupReads:   d.GroupReads,
		})
	}
	c.JSON(http.StatusOK, response)

	count := int64(len(result.Divergences))
	track(analytics.Event("Differential", "Divergence Count", "", &count))
}
