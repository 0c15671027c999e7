/*
   Copyright 2020 Joseph Cumines

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package plan

// Chain is a persistent, reference-counted-by-sharing cons-cell list: a
// head value plus a pointer to a shared tail, so that refinements that only
// prepend new elements share the rest of the list with their parent plan
// (spec §3, "a chain of T is itself a reference-counted cons-cell").
type Chain[T any] struct {
	Head T
	Tail *Chain[T]
}

// Cons prepends head onto tail, returning the new chain.
func Cons[T any](head T, tail *Chain[T]) *Chain[T] {
	return &Chain[T]{Head: head, Tail: tail}
}

// Slice materializes the chain into a plain slice, head-first.
func (c *Chain[T]) Slice() []T {
	var out []T
	for n := c; n != nil; n = n.Tail {
		out = append(out, n.Head)
	}
	return out
}

// Len counts the elements of the chain.
func (c *Chain[T]) Len() int {
	n := 0
	for x := c; x != nil; x = x.Tail {
		n++
	}
	return n
}

// Filter returns a freshly-consed chain containing only elements for which
// keep returns true, preserving order.
func Filter[T any](c *Chain[T], keep func(T) bool) *Chain[T] {
	items := c.Slice()
	var out *Chain[T]
	for i := len(items) - 1; i >= 0; i-- {
		if keep(items[i]) {
			out = Cons(items[i], out)
		}
	}
	return out
}
