// Package types implements the primitive type grammar (§4.A), CustomType
// declarations, and the built-in domain types (chat message, embedding, RAG
// document/chunk, search result) referenced throughout the resolved
// semantic model.
package types

import (
	"fmt"
	"strings"
)

// Primitive enumerates the scalar kinds in the type grammar:
//
//	prim := text | int | float | boolean | bytes | date | datetime | time
//	      | file | image | audio | video
type Primitive string

const (
	Text     Primitive = "text"
	Int      Primitive = "int"
	Float    Primitive = "float"
	Boolean  Primitive = "boolean"
	Bytes    Primitive = "bytes"
	Date     Primitive = "date"
	DateTime Primitive = "datetime"
	Time     Primitive = "time"
	File     Primitive = "file"
	Image    Primitive = "image"
	Audio    Primitive = "audio"
	Video    Primitive = "video"
)

var primitives = map[Primitive]bool{
	Text: true, Int: true, Float: true, Boolean: true, Bytes: true,
	Date: true, DateTime: true, Time: true, File: true, Image: true,
	Audio: true, Video: true,
}

// Domain enumerates the built-in domain types that resolve after custom
// types (ChatMessage, Embedding, RAGDocument, RAGChunk, SearchResult).
type Domain string

const (
	DomainChatMessage  Domain = "chat_message"
	DomainEmbedding    Domain = "embedding"
	DomainRAGDocument  Domain = "rag_document"
	DomainRAGChunk     Domain = "rag_chunk"
	DomainSearchResult Domain = "search_result"
)

var domains = map[Domain]bool{
	DomainChatMessage: true, DomainEmbedding: true, DomainRAGDocument: true,
	DomainRAGChunk: true, DomainSearchResult: true,
}

// Kind discriminates the shape of a resolved Type.
type Kind int

const (
	KindPrimitive Kind = iota
	KindCustom
	KindDomain
	KindList
)

// Type is a resolved type-grammar node. Exactly one of Prim, CustomID, or
// Domain is meaningful depending on Kind; Elem is set iff Kind is KindList.
// Optional is stripped from the type string and carried separately by the
// enclosing Variable per §4.A ("the parsed optional flag attaches to the
// enclosing variable, not the type").
type Type struct {
	Kind     Kind
	Prim     Primitive
	CustomID string
	Domain   Domain
	Elem     *Type
}

// ParseTypeString parses a raw type-grammar token (without the trailing
// `?`, which the caller strips and records on the Variable) into a Type,
// returning the unresolved token on failure. knownCustomTypes is the set of
// declared custom-type ids visible at the point of parsing; custom types
// are attempted only after primitives fail to match, and domain types only
// after custom types fail to match, per §4.A's two-pass resolution order.
func ParseTypeString(raw string, knownCustomTypes map[string]bool) (Type, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "list[") && strings.HasSuffix(raw, "]") {
		inner := raw[len("list[") : len(raw)-1]
		elem, err := ParseTypeString(inner, knownCustomTypes)
		if err != nil {
			return Type{}, err
		}
		if elem.Kind == KindList {
			return Type{}, fmt.Errorf("types: nested lists are not permitted in the surface syntax: %q", raw)
		}
		e := elem
		return Type{Kind: KindList, Elem: &e}, nil
	}
	if primitives[Primitive(raw)] {
		return Type{Kind: KindPrimitive, Prim: Primitive(raw)}, nil
	}
	if knownCustomTypes[raw] {
		return Type{Kind: KindCustom, CustomID: raw}, nil
	}
	if domains[Domain(raw)] {
		return Type{Kind: KindDomain, Domain: Domain(raw)}, nil
	}
	return Type{}, fmt.Errorf("types: unresolved type token %q", raw)
}

// String renders the Type back to its surface grammar form, without any
// optional marker (callers append "?" themselves when needed).
func (t Type) String() string {
	switch t.Kind {
	case KindPrimitive:
		return string(t.Prim)
	case KindCustom:
		return t.CustomID
	case KindDomain:
		return string(t.Domain)
	case KindList:
		return "list[" + t.Elem.String() + "]"
	default:
		return "<invalid>"
	}
}

// SplitOptional strips a trailing "?" from a raw type string, returning the
// base token and whether the optional marker was present.
func SplitOptional(raw string) (base string, optional bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "?") {
		return strings.TrimSuffix(raw, "?"), true
	}
	return raw, false
}
