package http

// SetMaxUpload lowers the upload cap for a test and returns the restore func.
func SetMaxUpload(n int64) (restore func()) {
	prev := maxUpload
	maxUpload = n
	return func() { maxUpload = prev }
}
