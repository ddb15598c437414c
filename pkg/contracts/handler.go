package contracts

import "github.com/julienschmidt/httprouter"

// Handler mounts a group of routes. app.Application calls RegisterRoutes
// once for each handler passed to SetApp, on a shared router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
