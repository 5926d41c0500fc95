package routes

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"avatar-chat-backend/internal/config"
	"avatar-chat-backend/internal/logger"
	"avatar-chat-backend/models"
	"avatar-chat-backend/services"
	"avatar-chat-backend/utils"

	"github.com/gin-gonic/gin"
)

// RegisterKnowledgeRoutes wires the document ingestion and query endpoints
// onto the router.
func RegisterKnowledgeRoutes(r *gin.Engine, cfg *config.Config, rag *services.RAGService) {
	knowledge := r.Group("/knowledge")
	{
		knowledge.POST("/upload", HandleUpload(cfg, rag))
		knowledge.POST("/search", HandleSearch(rag))
		knowledge.POST("/ask", HandleAsk(rag))
		knowledge.GET("/documents", HandleListDocuments(rag))
		knowledge.DELETE("/documents/:filename", HandleDeleteDocument(rag))
	}
}

// HandleUpload ingests a single PDF sent as the multipart field "pdf".
func HandleUpload(cfg *config.Config, rag *services.RAGService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("pdf")
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "no_file",
				"No PDF file provided", nil)
			return
		}
		defer file.Close()

		ct := header.Header.Get("Content-Type")
		if !strings.Contains(ct, "pdf") && !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type",
				"Only PDF files are allowed", nil)
			return
		}

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", nil)
			return
		}

		content, err := io.ReadAll(io.LimitReader(file, cfg.MaxFileSize+1))
		if err != nil {
			utils.RespondWithBadRequest(c, "Cannot read uploaded file", nil)
			return
		}
		if int64(len(content)) > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", nil)
			return
		}
		if len(content) < 5 || string(content[:4]) != "%PDF" {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_pdf",
				"File does not appear to be a valid PDF", nil)
			return
		}

		result, err := rag.Ingest(c.Request.Context(), header.Filename, content)
		if err != nil {
			logger.Error("document ingestion failed", "filename", header.Filename, "error", err)
			utils.RespondWithInternalError(c, "Failed to process document", err.Error())
			return
		}

		utils.RespondWithSuccess(c, result)
	}
}

// HandleSearch ranks one document's chunks against a query string.
func HandleSearch(rag *services.RAGService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "query and filename are required", err.Error())
			return
		}

		results, err := rag.Search(c.Request.Context(), req.Filename, req.Query, req.Limit)
		if err != nil {
			if errors.Is(err, models.ErrDocumentNotFound) {
				utils.RespondWithNotFound(c, "Document not found: "+req.Filename)
				return
			}
			logger.Error("search failed", "filename", req.Filename, "error", err)
			utils.RespondWithInternalError(c, "Search failed", nil)
			return
		}

		utils.RespondWithSuccess(c, models.SearchResponse{
			Results:      results,
			TotalResults: len(results),
		})
	}
}

// HandleAsk answers a question about one stored document.
func HandleAsk(rag *services.RAGService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "filename and query are required", err.Error())
			return
		}

		resp, err := rag.Ask(c.Request.Context(), req)
		if err != nil {
			if errors.Is(err, models.ErrDocumentNotFound) {
				utils.RespondWithNotFound(c, "Document not found: "+req.Filename)
				return
			}
			logger.Error("ask failed", "filename", req.Filename, "error", err)
			utils.RespondWithInternalError(c, "Failed to answer question", nil)
			return
		}

		utils.RespondWithSuccess(c, resp)
	}
}

// HandleListDocuments lists every stored document with chunk counts and
// processing timestamps.
func HandleListDocuments(rag *services.RAGService) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries := rag.ListDocuments()
		utils.RespondWithSuccess(c, gin.H{
			"documents": summaries,
			"total":     len(summaries),
		})
	}
}

// HandleDeleteDocument removes a stored document.
func HandleDeleteDocument(rag *services.RAGService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename := c.Param("filename")
		if err := rag.DeleteDocument(filename); err != nil {
			if errors.Is(err, models.ErrDocumentNotFound) {
				utils.RespondWithNotFound(c, "Document not found: "+filename)
				return
			}
			utils.RespondWithInternalError(c, "Failed to delete document", nil)
			return
		}
		utils.RespondWithSuccess(c, gin.H{"deleted": filename})
	}
}
