package routes

import (
	"github.com/gorilla/mux"

	"vmget/handlers"
)

// Setup configures and returns a new router with all defined routes for the application.
func Setup(handlers *handlers.Handlers) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	api := router.PathPrefix("/api").Subrouter()

	// GET routes for the catalog, session snapshots and history.
	setupGetRoutes(api, handlers)

	// POST routes that drive a session through its pages.
	setupPostRoutes(api, handlers)

	api.HandleFunc("/sessions/{id}", handlers.DeleteSession).Methods("DELETE").Name("DeleteSession")

	return router
}

// setupGetRoutes defines all routes that handle GET requests.
func setupGetRoutes(router *mux.Router, handlers *handlers.Handlers) {
	router.HandleFunc("/status", handlers.Status).Methods("GET").Name("Status")
	router.HandleFunc("/os", handlers.ListOS).Methods("GET").Name("ListOS")
	router.HandleFunc("/sessions", handlers.ListSessions).Methods("GET").Name("ListSessions")
	router.HandleFunc("/sessions/{id}", handlers.GetSession).Methods("GET").Name("GetSession")
	router.HandleFunc("/history", handlers.History).Methods("GET").Name("History")
	router.HandleFunc("/configs", handlers.Configs).Methods("GET").Name("Configs")
}

// setupPostRoutes defines all routes that handle POST requests.
func setupPostRoutes(router *mux.Router, handlers *handlers.Handlers) {
	router.HandleFunc("/sessions", handlers.CreateSession).Methods("POST").Name("CreateSession")
	router.HandleFunc("/sessions/{id}/os", handlers.ChooseOS).Methods("POST").Name("ChooseOS")
	router.HandleFunc("/sessions/{id}/select", handlers.Select).Methods("POST").Name("Select")
	router.HandleFunc("/sessions/{id}/start", handlers.Start).Methods("POST").Name("Start")
	router.HandleFunc("/sessions/{id}/cancel", handlers.Cancel).Methods("POST").Name("Cancel")
}
