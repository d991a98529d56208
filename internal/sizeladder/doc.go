// Package sizeladder picks a canonical stored thumbnail edge length from a
// small fixed ladder given a requested size, a crop flag, and a
// bounded/unbounded selection policy.
//
// Unbounded mode prefers a stored size at least as large as the request;
// bounded mode prefers a stored size no larger than the request. Both modes
// always resolve to a concrete ladder value; see [Select].
package sizeladder
