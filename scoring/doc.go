// Package scoring ranks candidate tools for a free-text query.
//
// The score of a tool is the sum of weighted components, clamped to [0, 100]:
//
//   - lexical: weight * |Q ∩ T| / |Q|, where Q is the query token set and T is
//     the token set of the tool name, description, tags and examples;
//   - preferred category: weight, if the tool category is preferred by the user;
//   - preferred tool: weight, if the tool is preferred by the user;
//   - priority: weight * priority / 100, capped at the weight.
//
// Ties are broken by priority, then by the input order.
package scoring
