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

// Package httpapi exposes the engine over HTTP: collection management and
// the upsert/query/filter surface.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/jerryli99/vectordb/internal/db"
	"github.com/jerryli99/vectordb/internal/log"
	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/paramtable"
)

// Server wraps a gin engine and a bounded worker pool that request
// handlers dispatch CPU-bound work (batch upsert, search fan-out) onto,
// so one slow collection's request load can't starve the HTTP accept
// loop.
type Server struct {
	engine *gin.Engine
	pool   *ants.Pool
	db     *db.DB
	cfg    paramtable.Config
}

// New builds the gin engine, routes, and worker pool.
func New(database *db.DB, cfg paramtable.Config, poolSize int) (*Server, error) {
	if poolSize <= 0 {
		poolSize = 64
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, merr.Wrap(err, "create worker pool")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(zapLogger(), gin.Recovery())

	s := &Server{engine: engine, pool: pool, db: database, cfg: cfg}
	s.routes()
	return s, nil
}

// Run starts the HTTP listener, blocking until it exits or ctx-equivalent
// shutdown is triggered by the caller.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Close releases the worker pool.
func (s *Server) Close() {
	s.pool.Release()
}

func (s *Server) routes() {
	s.engine.PUT("/collections/:name", s.handleCreateCollection)
	s.engine.GET("/collections", s.handleListCollections)
	s.engine.GET("/collections/:name", s.handleGetCollection)
	s.engine.DELETE("/collections/:name", s.handleDeleteCollection)
	s.engine.POST("/collections/:name/upsert", s.handleUpsert)
	s.engine.POST("/collections/:name/query", s.handleQuery)
	s.engine.POST("/collections/:name/query_filtered", s.handleQueryFiltered)
	s.engine.POST("/collections/:name/filter", s.handleFilter)
	s.engine.POST("/collections/:name/graph/link", s.handleGraphLink)
	s.engine.DELETE("/collections/:name/graph/link", s.handleGraphUnlink)
	s.engine.GET("/collections/:name/graph/neighbors", s.handleGraphNeighbors)
}

// zapLogger mirrors the teacher pack's gin+zap middleware shape: log every
// request at a level chosen by status code, with route/latency/client
// fields attached.
func zapLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Error(errors.Join(errorsOf(c.Errors)...)))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func errorsOf(errs []*gin.Error) []error {
	out := make([]error, 0, len(errs))
	for _, e := range errs {
		if e.Err != nil {
			out = append(out, e.Err)
		}
	}
	return out
}

// writeError maps an internal error onto the JSON envelope and status
// code the merr taxonomy assigns it.
func writeError(c *gin.Context, err error) {
	c.JSON(merr.HTTPStatus(err), gin.H{
		"status": "error",
		"error":  err.Error(),
	})
}

func writeOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"data":   data,
	})
}
