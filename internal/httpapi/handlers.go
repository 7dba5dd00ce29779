// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpapi

import (
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/jerryli99/vectordb/internal/db"
	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

func (s *Server) handleCreateCollection(c *gin.Context) {
	var req db.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, merr.Wrapf(merr.ErrMalformedJSON, "%v", err))
		return
	}
	req.Name = c.Param("name")

	if err := s.db.AddCollection(req); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"name": req.Name})
}

func (s *Server) handleListCollections(c *gin.Context) {
	writeOK(c, gin.H{"collections": s.db.ListCollections()})
}

func (s *Server) handleGetCollection(c *gin.Context) {
	name := c.Param("name")
	for _, n := range s.db.ListCollections() {
		if n == name {
			writeOK(c, gin.H{"name": name})
			return
		}
	}
	writeError(c, merr.Wrapf(merr.ErrCollectionNotFound, "collection %q", name))
}

func (s *Server) handleDeleteCollection(c *gin.Context) {
	name := c.Param("name")
	if err := s.db.DeleteCollection(name); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"name": name})
}

// wireUpsertRequest is the JSON shape decoded straight off the wire,
// before the point id's string/uint64 variant is resolved.
type wireUpsertRequest struct {
	Id      json.RawMessage        `json:"id" binding:"required"`
	Vector  []float32              `json:"vector,omitempty"`
	Vectors map[string][]float32   `json:"vectors,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func decodePointId(raw json.RawMessage) (vectortypes.PointId, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return vectortypes.StringId(asString), nil
	}
	var asNumber uint64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return vectortypes.Uint64Id(asNumber), nil
	}
	return vectortypes.PointId{}, merr.Wrap(merr.ErrMalformedJSON, "id must be a string or non-negative integer")
}

func (w wireUpsertRequest) toUpsertRequest() (db.UpsertRequest, error) {
	id, err := decodePointId(w.Id)
	if err != nil {
		return db.UpsertRequest{}, err
	}
	return db.UpsertRequest{
		Id:      id,
		Vector:  w.Vector,
		Vectors: w.Vectors,
		Payload: w.Payload,
	}, nil
}

func (s *Server) handleUpsert(c *gin.Context) {
	if c.Request.ContentLength > s.cfg.MaxJSONRequestSize {
		writeError(c, merr.Wrap(merr.ErrRequestTooLarge, "request body exceeds configured limit"))
		return
	}

	var body struct {
		Points []wireUpsertRequest `json:"points" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, merr.Wrapf(merr.ErrMalformedJSON, "%v", err))
		return
	}
	if len(body.Points) > s.cfg.MaxPointsPerRequest {
		writeError(c, merr.Wrapf(merr.ErrTooManyBatch, "%d points exceeds limit of %d", len(body.Points), s.cfg.MaxPointsPerRequest))
		return
	}

	name := c.Param("name")
	reqs := make([]db.UpsertRequest, 0, len(body.Points))
	for _, wp := range body.Points {
		up, err := wp.toUpsertRequest()
		if err != nil {
			writeError(c, err)
			return
		}
		reqs = append(reqs, up)
	}

	var wg sync.WaitGroup
	var submitErr error
	wg.Add(1)
	if err := s.pool.Submit(func() {
		defer wg.Done()
		submitErr = s.db.UpsertBatch(name, reqs)
	}); err != nil {
		wg.Done()
		writeError(c, merr.Wrap(err, "submit upsert to worker pool"))
		return
	}
	wg.Wait()

	if submitErr != nil {
		writeError(c, submitErr)
		return
	}
	writeOK(c, gin.H{"upserted": len(reqs)})
}

type queryRequest struct {
	Using        string      `json:"using,omitempty"`
	QueryVectors [][]float32 `json:"query_vectors" binding:"required"`
	TopK         int         `json:"top_k" binding:"required"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, merr.Wrapf(merr.ErrMalformedJSON, "%v", err))
		return
	}
	vectorName := req.Using
	if vectorName == "" {
		vectorName = vectortypes.DefaultVectorName
	}

	queries := make([]vectortypes.Vector, len(req.QueryVectors))
	for i, q := range req.QueryVectors {
		queries[i] = q
	}

	name := c.Param("name")
	var result vectortypes.QueryResult
	var queryErr error
	var wg sync.WaitGroup
	wg.Add(1)
	if err := s.pool.Submit(func() {
		defer wg.Done()
		result, queryErr = s.db.SearchTopKInCollection(c.Request.Context(), name, vectorName, queries, req.TopK)
	}); err != nil {
		wg.Done()
		writeError(c, merr.Wrap(err, "submit query to worker pool"))
		return
	}
	wg.Wait()

	if queryErr != nil {
		writeError(c, queryErr)
		return
	}
	if result.Status != nil {
		writeError(c, result.Status)
		return
	}
	writeOK(c, gin.H{"results": result.Results})
}

type filterRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value" binding:"required"`
}

func (s *Server) handleFilter(c *gin.Context) {
	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, merr.Wrapf(merr.ErrMalformedJSON, "%v", err))
		return
	}

	name := c.Param("name")
	payloads, err := s.db.FilterPayloads(name, req.Field, req.Value)
	if err != nil {
		writeError(c, err)
		return
	}

	raw := make([]json.RawMessage, len(payloads))
	for i, p := range payloads {
		raw[i] = p
	}
	writeOK(c, gin.H{"payloads": raw})
}

type queryFilteredRequest struct {
	Using        string      `json:"using,omitempty"`
	QueryVectors [][]float32 `json:"query_vectors" binding:"required"`
	TopK         int         `json:"top_k" binding:"required"`
	Field        string      `json:"field" binding:"required"`
	Value        string      `json:"value" binding:"required"`
}

func (s *Server) handleQueryFiltered(c *gin.Context) {
	var req queryFilteredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, merr.Wrapf(merr.ErrMalformedJSON, "%v", err))
		return
	}
	vectorName := req.Using
	if vectorName == "" {
		vectorName = vectortypes.DefaultVectorName
	}

	queries := make([]vectortypes.Vector, len(req.QueryVectors))
	for i, q := range req.QueryVectors {
		queries[i] = q
	}

	name := c.Param("name")
	result, err := s.db.SearchTopKFilteredInCollection(c.Request.Context(), name, vectorName, queries, req.TopK, req.Field, req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	if result.Status != nil {
		writeError(c, result.Status)
		return
	}
	writeOK(c, gin.H{"results": result.Results})
}

type linkRequest struct {
	From     json.RawMessage `json:"from" binding:"required"`
	To       json.RawMessage `json:"to" binding:"required"`
	Relation string          `json:"relation,omitempty"`
}

func (s *Server) handleGraphLink(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, merr.Wrapf(merr.ErrMalformedJSON, "%v", err))
		return
	}
	from, err := decodePointId(req.From)
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := decodePointId(req.To)
	if err != nil {
		writeError(c, err)
		return
	}

	name := c.Param("name")
	if err := s.db.LinkPoints(name, from, to, req.Relation); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"linked": true})
}

func (s *Server) handleGraphUnlink(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, merr.Wrapf(merr.ErrMalformedJSON, "%v", err))
		return
	}
	from, err := decodePointId(req.From)
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := decodePointId(req.To)
	if err != nil {
		writeError(c, err)
		return
	}

	name := c.Param("name")
	if err := s.db.UnlinkPoints(name, from, to); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"linked": false})
}

func (s *Server) handleGraphNeighbors(c *gin.Context) {
	name := c.Param("name")
	relation := c.Query("relation")
	from := vectortypes.StringId(c.Query("from"))

	neighbors, err := s.db.Neighbors(name, from, relation)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"neighbors": neighbors})
}
