package main

// General API documentation for swaggo. Run `swag init` here to generate docs,
// then build with -tags=swagger to serve them.
//
// @title           civitaid API
// @version         1.0
// @description     HTTP front-end for downloading and managing Civitai model assets via the civitdl CLI.
//
// @contact.name   civitaid maintainers
// @contact.url    https://github.com/your-org/civitaid
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
