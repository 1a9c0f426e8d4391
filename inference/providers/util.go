package providers

import "runtime"

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// Arguments:
//   - override: A configured path. Returned as is when not empty.
//
// Returns:
//   - string: The path to the shared library.
func GetSharedLibPath(override string) string {
	if override != "" {
		return override
	}
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.1.21.0.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}
