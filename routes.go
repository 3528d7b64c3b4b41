package main

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/camilo-ai/camilo/rag"
	"github.com/camilo-ai/camilo/rag/sources"
	"github.com/camilo-ai/camilo/rag/types"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mudler/xlog"
)

type messageRequest struct {
	Messages []rag.Message `json:"messages"`
}

type simulateRequest struct {
	Messages []rag.Message `json:"messages"`
	IsUser   bool          `json:"isUser"`
}

type updateBlogsRequest struct {
	Source string `json:"source"`
}

type sourceRequest struct {
	URL            string `json:"url"`
	UpdateInterval int    `json:"update_interval"` // minutes
}

// services are the components the API is served from.
type services struct {
	orchestrator   *rag.ChatOrchestrator
	simulator      *rag.Simulator
	ingester       *rag.Ingester
	sources        *rag.SourceManager
	updateInterval time.Duration
	adminKey       string
}

func newRouter(s *services, corsOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowCredentials: true,
	}))

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Hello World")
	})

	e.POST("/message", message(s.orchestrator))
	e.POST("/simulateMessage", simulateMessage(s.simulator))

	// everything under /api changes or exposes the indexes
	api := e.Group("/api", middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Validator:    adminKeyValidator(s.adminKey),
		ErrorHandler: func(err error, c echo.Context) error {
			return c.JSON(http.StatusUnauthorized, errorMessage("Unauthorized"))
		},
	}))

	api.POST("/blogs/update", updateBlogs(s.sources))
	api.POST("/questions", storeQuestions(s.ingester))
	api.POST("/conversations", storeConversations(s.ingester))

	api.GET("/sources", listSources(s.sources))
	api.POST("/sources", addSource(s.sources, s.updateInterval))
	api.DELETE("/sources", removeSource(s.sources))

	return e
}

// adminKeyValidator accepts the bearer token matching adminKey. No token is
// accepted when adminKey is empty.
func adminKeyValidator(adminKey string) middleware.KeyAuthValidator {
	return func(key string, c echo.Context) (bool, error) {
		if adminKey == "" {
			return false, nil
		}
		return subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) == 1, nil
	}
}

const unsupportedSource = "Only web pages, sitemaps and git repositories can be added"

func errorMessage(message string) map[string]string {
	return map[string]string{"error": message}
}

// message answers the last user message of the transcript
func message(orchestrator *rag.ChatOrchestrator) func(c echo.Context) error {
	return func(c echo.Context) error {
		r := new(messageRequest)
		if err := c.Bind(r); err != nil {
			return c.JSON(http.StatusBadRequest, errorMessage("Invalid request"))
		}

		result, err := orchestrator.HandleTurn(c.Request().Context(), r.Messages)
		if err != nil {
			xlog.Error("Failed to process message", "kind", rag.KindOf(err), "error", err)
			return c.JSON(http.StatusInternalServerError, errorMessage("Failed to process message"))
		}

		return c.JSON(http.StatusOK, result)
	}
}

func simulateMessage(simulator *rag.Simulator) func(c echo.Context) error {
	return func(c echo.Context) error {
		r := new(simulateRequest)
		if err := c.Bind(r); err != nil {
			return c.JSON(http.StatusBadRequest, errorMessage("Invalid request"))
		}

		reply, err := simulator.Next(c.Request().Context(), r.Messages, r.IsUser)
		if err != nil {
			xlog.Error("Failed to simulate message", "kind", rag.KindOf(err), "error", err)
			return c.JSON(http.StatusInternalServerError, errorMessage("Failed to process message"))
		}

		return c.JSON(http.StatusOK, rag.TurnResult{Reply: reply, LinkMap: types.LinkMap{}})
	}
}

func updateBlogs(manager *rag.SourceManager) func(c echo.Context) error {
	return func(c echo.Context) error {
		r := new(updateBlogsRequest)
		if err := c.Bind(r); err != nil || r.Source == "" {
			return c.JSON(http.StatusBadRequest, errorMessage("A source is required"))
		}
		if !sources.IsRemote(r.Source) {
			return c.JSON(http.StatusBadRequest, errorMessage(unsupportedSource))
		}

		processed, err := manager.Sync(c.Request().Context(), r.Source)
		if err != nil {
			xlog.Error("Failed to update blogs", "source", r.Source, "error", err)
			return c.JSON(http.StatusInternalServerError, errorMessage("Failed to update blogs"))
		}

		return c.JSON(http.StatusOK, map[string]any{
			"message":           "Blogs updated successfully",
			"newBlogsProcessed": processed,
		})
	}
}

func storeQuestions(ingester *rag.Ingester) func(c echo.Context) error {
	return func(c echo.Context) error {
		qas := []types.QuestionAnswer{}
		if err := c.Bind(&qas); err != nil {
			return c.JSON(http.StatusBadRequest, errorMessage("Invalid request"))
		}

		stored, err := ingester.IngestQuestions(c.Request().Context(), qas)
		if err != nil {
			xlog.Error("Failed to store questions", "stored", stored, "error", err)
			return c.JSON(http.StatusInternalServerError, errorMessage("Failed to store questions"))
		}

		return c.JSON(http.StatusCreated, map[string]int{"stored": stored})
	}
}

func storeConversations(ingester *rag.Ingester) func(c echo.Context) error {
	return func(c echo.Context) error {
		conversations := []types.ConversationExample{}
		if err := c.Bind(&conversations); err != nil {
			return c.JSON(http.StatusBadRequest, errorMessage("Invalid request"))
		}

		stored, err := ingester.IngestConversations(c.Request().Context(), conversations)
		if err != nil {
			xlog.Error("Failed to store conversations", "stored", stored, "error", err)
			return c.JSON(http.StatusInternalServerError, errorMessage("Failed to store conversations"))
		}

		return c.JSON(http.StatusCreated, map[string]int{"stored": stored})
	}
}

func listSources(manager *rag.SourceManager) func(c echo.Context) error {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, manager.Sources())
	}
}

func addSource(manager *rag.SourceManager, defaultInterval time.Duration) func(c echo.Context) error {
	return func(c echo.Context) error {
		r := new(sourceRequest)
		if err := c.Bind(r); err != nil || r.URL == "" {
			return c.JSON(http.StatusBadRequest, errorMessage("A url is required"))
		}
		if !sources.IsRemote(r.URL) {
			return c.JSON(http.StatusBadRequest, errorMessage(unsupportedSource))
		}

		interval := defaultInterval
		if r.UpdateInterval > 0 {
			interval = time.Duration(r.UpdateInterval) * time.Minute
		}

		if err := manager.AddSource(r.URL, interval); err != nil {
			return c.JSON(http.StatusConflict, errorMessage(err.Error()))
		}

		return c.JSON(http.StatusCreated, manager.Sources())
	}
}

func removeSource(manager *rag.SourceManager) func(c echo.Context) error {
	return func(c echo.Context) error {
		r := new(sourceRequest)
		if err := c.Bind(r); err != nil || r.URL == "" {
			return c.JSON(http.StatusBadRequest, errorMessage("A url is required"))
		}

		if err := manager.RemoveSource(r.URL); err != nil {
			return c.JSON(http.StatusNotFound, errorMessage(err.Error()))
		}

		return c.JSON(http.StatusOK, manager.Sources())
	}
}
