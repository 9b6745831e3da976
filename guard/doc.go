// Package guard decides whether a navigation may proceed given the
// current session state.
//
// [Decide] is a pure function of the state, the route's [Requirement]
// and a [Policy]; it may be evaluated as often as needed. [Table] maps
// route paths to requirements and [Navigator] ties a table to a live
// session.
package guard
