package rag

import (
	"github.com/camilo-ai/camilo/rag/interfaces"
	"github.com/camilo-ai/camilo/rag/types"
)

// Embedder is an alias for interfaces.Embedder
type Embedder = interfaces.Embedder

// Searcher is an alias for interfaces.Searcher
type Searcher = interfaces.Searcher

// Completer is an alias for interfaces.Completer
type Completer = interfaces.Completer

// TurnRecorder is an alias for interfaces.TurnRecorder
type TurnRecorder = interfaces.TurnRecorder

// IndexWriter is an alias for interfaces.IndexWriter
type IndexWriter = interfaces.IndexWriter

// Message is an alias for types.Message
type Message = types.Message

// RankedContext is an alias for types.RankedContext
type RankedContext = types.RankedContext
