// Package enums provides the type-safe work status enumeration shared by the store,
// the reconciler and the dispatcher.
//
// The enum is defined as an unexported integer type below, the go:generate directive
// invokes go-pkgz/enum to make the exported WorkStatus type with String, Parse,
// text marshaling and Scan/Value methods in work_status_enum.go. State machine rules
// live in status.go and are not touched by the generator.
//
//	status := enums.WorkStatusRunning
//	fmt.Println(status.String()) // "running"
//
//	parsed, err := enums.ParseWorkStatus("succeeded")
//	if err != nil {
//	    // handle invalid input
//	}
//
// Statuses are stored as lower-case strings and converted transparently by Scan/Value.
//
// To regenerate the enum type after modifications:
//
//	go generate ./app/enums
package enums

//go:generate go run github.com/go-pkgz/enum@latest -type workStatus -lower

// workStatus is the execution status of a work item.
// This is an unexported type used only as input for the code generator.
// Use the exported WorkStatus type and its constants in actual code.
type workStatus int

const (
	workStatusEnqueued workStatus = iota
	workStatusRunning
	workStatusSucceeded
	workStatusFailed
	workStatusCancelled
)
