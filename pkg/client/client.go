package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/camilo-ai/camilo/rag"
	"github.com/camilo-ai/camilo/rag/types"
)

// Client is a client for the chat API
type Client struct {
	BaseURL  string
	AdminKey string
	client   *http.Client
}

// NewClient creates a new chat API client
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAdminKey sets the key sent to the ingestion and source routes
func (c *Client) WithAdminKey(key string) *Client {
	c.AdminKey = key
	return c
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(method, path string, body any, expected int, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, c.BaseURL+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AdminKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.AdminKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		var e apiError
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return errors.New(e.Error)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SendMessage asks for a reply to the last user message of the transcript
func (c *Client) SendMessage(messages []types.Message) (*rag.TurnResult, error) {
	result := &rag.TurnResult{}
	err := c.do(http.MethodPost, "/message", map[string]any{"messages": messages}, http.StatusOK, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SimulateMessage generates the next message of a practice conversation
func (c *Client) SimulateMessage(messages []types.Message, isUser bool) (string, error) {
	result := &rag.TurnResult{}
	err := c.do(http.MethodPost, "/simulateMessage", map[string]any{"messages": messages, "isUser": isUser}, http.StatusOK, result)
	if err != nil {
		return "", err
	}
	return result.Reply, nil
}

// UpdateBlogs ingests the new posts of a source and returns how many were processed
func (c *Client) UpdateBlogs(source string) (int, error) {
	var result struct {
		Processed int `json:"newBlogsProcessed"`
	}
	err := c.do(http.MethodPost, "/api/blogs/update", map[string]string{"source": source}, http.StatusOK, &result)
	return result.Processed, err
}

// StoreQuestions adds curated question/answer pairs
func (c *Client) StoreQuestions(qas []types.QuestionAnswer) (int, error) {
	var result struct {
		Stored int `json:"stored"`
	}
	err := c.do(http.MethodPost, "/api/questions", qas, http.StatusCreated, &result)
	return result.Stored, err
}

// StoreConversations adds example conversations
func (c *Client) StoreConversations(conversations []types.ConversationExample) (int, error) {
	var result struct {
		Stored int `json:"stored"`
	}
	err := c.do(http.MethodPost, "/api/conversations", conversations, http.StatusCreated, &result)
	return result.Stored, err
}

// ListSources lists the registered sources
func (c *Client) ListSources() ([]rag.ExternalSource, error) {
	var sources []rag.ExternalSource
	err := c.do(http.MethodGet, "/api/sources", nil, http.StatusOK, &sources)
	return sources, err
}

// AddSource registers a source refreshed every updateInterval minutes
func (c *Client) AddSource(url string, updateInterval int) error {
	return c.do(http.MethodPost, "/api/sources", map[string]any{"url": url, "update_interval": updateInterval}, http.StatusCreated, nil)
}

// RemoveSource unregisters a source
func (c *Client) RemoveSource(url string) error {
	return c.do(http.MethodDelete, "/api/sources", map[string]string{"url": url}, http.StatusOK, nil)
}
