package transformcache

import "fmt"

var (
	ErrMissingRoot      = fmt.Errorf("Root is mandatory")
	ErrMissingTransform = fmt.Errorf("Transform is mandatory")
	ErrInvalidRoot      = fmt.Errorf("Invalid root")
	ErrNoInitialAsset   = fmt.Errorf("Transform produced no initial asset")
)

// TransformError is handed to the error handler when a document could not be transformed.
type TransformError struct {
	URL string
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform of %s failed: %v", e.URL, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}
