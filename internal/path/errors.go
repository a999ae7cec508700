package path

import "fmt"

// AbsentError indicates a Get traversed through a missing key or an
// out-of-range array index. Corresponds to spec §4.2's PathAbsent: "the
// reference behavior treats null/missing as an error; callers that want
// optional semantics should read the parent instead".
type AbsentError struct {
	Path string
}

func (e *AbsentError) Error() string {
	return fmt.Sprintf("path: absent: %s", e.Path)
}
