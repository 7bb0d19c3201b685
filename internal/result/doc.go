// Package result decodes engine responses into typed query results.
package result
