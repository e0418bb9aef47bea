// Package rql parses the resource query language subset used to describe
// record queries, producing a queryir.Query.
//
// Two notations are accepted and may be mixed:
//
//	and(gt(id,0),eq(status,active),limit(10))   call notation
//	id>0&status=active&limit(10)                 operator notation
//
// Operators: = (eq), == (eq), != (ne), < <= > >=, and =name= for any call
// taking a field and a value (id=in=(1,2,3)). & and , conjoin, | disjoins,
// parentheses group.
//
// Values: integers, true, false, null, "quoted" or 'quoted' strings, $N
// parameters, (a,b) arrays, type-prefixed words (string:12, number:12,
// boolean:true) and bare words, which are percent-decoded strings.
//
// Built-in calls are and, or, not, eq, ne, lt, le, gt, ge, in, out,
// contains, exists and the limit(count[,start[,maxCount]]) directive. Any
// other name parses as a queryir.Call for the caller to resolve.
package rql
