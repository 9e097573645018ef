// Package parser implements core.Parser on top of hosted language models.
//
// Two providers are supported, OpenAI and Anthropic. Both send the same
// prompt and decode the same JSON document; provider errors are classified
// into the stage error taxonomy in pkg/core.
package parser
