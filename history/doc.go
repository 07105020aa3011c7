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


// Package history renders a conversation transcript that fits a token budget.
//
// Short conversations are returned verbatim. Longer ones keep the newest
// messages verbatim and replace everything older with a generated summary,
// which is cached per scope and regenerated only when the boundary between
// summarized and verbatim messages moves.
package history
