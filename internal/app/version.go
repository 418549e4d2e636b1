package app

const ServiceName = "academic-service"

// Set via -ldflags during build:
//
//	go build -ldflags="-X 'academic-service/internal/app.Version=1.0.0'"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
