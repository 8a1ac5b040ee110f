// Package domain defines the core domain values for the MBaaS client.
//
// Domain values are plain data without IO dependencies. This package contains:
//
//   - Response: the result of one exchange with the backend
//   - Errors: structured error codes shared by every layer
package domain
