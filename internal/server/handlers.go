package server

import (
	"net/http"
	"strconv"

	"kdstore/internal/kdtree"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleInsert() gin.HandlerFunc {
	return func(c *gin.Context) {
		treeName := c.Query("tree_name")
		var req PointRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		point := kdtree.Point{Embedding: req.Embedding, Data: req.Data}
		if err := s.db.InsertPoint(c.Request.Context(), treeName, point); err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, InsertResponse{
			Message:  "point inserted",
			TreeName: treeName,
		})
	}
}

func (s *Server) handleNearestTop() gin.HandlerFunc {
	return func(c *gin.Context) {
		treeName := c.Query("tree_name")
		n, err := strconv.Atoi(c.DefaultQuery("n", "1"))
		if err != nil {
			badRequest(c, "n must be an integer")
			return
		}
		var req PointRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		neighbors, err := s.db.NearestTopN(c.Request.Context(), treeName, req.Embedding, n)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, neighbors)
	}
}

func (s *Server) handleNearest() gin.HandlerFunc {
	return func(c *gin.Context) {
		treeName := c.Query("tree_name")
		var req PointRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		neighbor, err := s.db.Nearest(c.Request.Context(), treeName, req.Embedding)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, neighbor)
	}
}

func (s *Server) handleStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.db.Status(c.Request.Context()))
	}
}
