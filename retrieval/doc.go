// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package retrieval finds the chunks of a document that answer a question.
//
// The Engine runs a vector search and a lexical search concurrently and
// merges the two rankings with Reciprocal Rank Fusion. When the fused
// ranking has no clear winner the candidates are reordered by the language
// model. AnswerContext then packs the best chunks into a token budget,
// stopping at the first chunk that does not fit.
//
// Results are ordered; the order is the contract. Scores are fused RRF
// scores and are only comparable within one query.
package retrieval
