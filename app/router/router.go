package router

import (
	"net/http"

	"certistage/app/controller"
	"certistage/app/middleware"
)

type Controllers struct {
	Template  *controller.TemplateController
	Editor    *controller.EditorController
	Recipient *controller.RecipientController
	Delivery  *controller.DeliveryController
	Asset     *controller.AssetController
}

// pingHandler handles GET /ping
func pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// SetupRoutes registers every route and returns the root handler
func SetupRoutes(controllers *Controllers) http.Handler {
	mux := http.NewServeMux()

	// Ping endpoint
	mux.HandleFunc("GET /ping", pingHandler)

	// Public delivery routes
	mux.HandleFunc("POST /public/events/{eventId}/verify", controllers.Delivery.Verify)
	mux.HandleFunc("GET /public/events/{eventId}/certificates/{certificateId}", controllers.Delivery.DirectLink)
	mux.HandleFunc("GET /public/preview", controllers.Delivery.Preview)
	mux.HandleFunc("GET /public/download", controllers.Delivery.Download)

	// Admin routes require an authenticated operator
	admin := http.NewServeMux()

	// Templates
	admin.HandleFunc("GET /admin/events/{eventId}/types", controllers.Template.ListTypes)
	admin.HandleFunc("GET /admin/events/{eventId}/types/{typeId}/template", controllers.Template.GetTemplate)
	admin.HandleFunc("PATCH /admin/events/{eventId}/types/{typeId}/template", controllers.Template.PatchTemplate)
	admin.HandleFunc("GET /admin/events/{eventId}/types/{typeId}/template/preview", controllers.Template.Preview)

	// Editor sessions
	admin.HandleFunc("POST /admin/editor/sessions", controllers.Editor.Open)
	admin.HandleFunc("GET /admin/editor/sessions/{id}", controllers.Editor.Get)
	admin.HandleFunc("PATCH /admin/editor/sessions/{id}", controllers.Editor.Apply)
	admin.HandleFunc("GET /admin/editor/sessions/{id}/preview", controllers.Editor.Preview)
	admin.HandleFunc("DELETE /admin/editor/sessions/{id}", controllers.Editor.Close)

	// Recipients
	admin.HandleFunc("GET /admin/events/{eventId}/types/{typeId}/recipients", controllers.Recipient.List)
	admin.HandleFunc("POST /admin/events/{eventId}/types/{typeId}/recipients", controllers.Recipient.Add)
	admin.HandleFunc("POST /admin/events/{eventId}/types/{typeId}/recipients/import", controllers.Recipient.Import)
	admin.HandleFunc("DELETE /admin/events/{eventId}/recipients/{recipientId}", controllers.Recipient.Delete)
	admin.HandleFunc("GET /admin/events/{eventId}/types/{typeId}/export", controllers.Recipient.Export)
	admin.HandleFunc("GET /admin/events/{eventId}/usage", controllers.Recipient.Usage)

	// Assets
	admin.HandleFunc("GET /admin/assets", controllers.Asset.ListAssets)
	admin.HandleFunc("GET /admin/assets/thumbnail", controllers.Asset.Thumbnail)
	admin.HandleFunc("POST /admin/assets/prefetch", controllers.Asset.Prefetch)

	mux.Handle("/admin/", middleware.RequireOperator(admin))

	return middleware.RequestLogger(middleware.Recover(mux))
}
