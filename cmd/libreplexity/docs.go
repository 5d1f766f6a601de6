package main

// General API documentation for swaggo. Run `swag init -g cmd/libreplexity/docs.go -o docs` to regenerate.
//
// @title           libreplexity API
// @version         1.0
// @description     Search, read and summarize the web with a local model.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
