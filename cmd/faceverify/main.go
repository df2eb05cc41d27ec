// Command faceverify runs the face verification service.
//
// Usage:
//
//	faceverify serve [--port 5000]
//	faceverify check photo.jpg
//	faceverify verify photo.jpg
//
// Configuration comes from an optional YAML file (--config), a .env file and
// environment variables such as MIN_AGE, MIN_BLUR_SCORE and DEEPFACE_URL.
package main

import "github.com/teslashibe/go-faceverify/internal/cli"

func main() {
	cli.Execute()
}
