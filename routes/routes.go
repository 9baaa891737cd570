package routes

import (
	"log"
	"os"

	controller "timecapsule/controllers"
	"timecapsule/middleware"
	"timecapsule/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

// SetupRoutes wires every endpoint onto the app.
func SetupRoutes(app *fiber.App, db *gorm.DB, mailer *utils.Mailer) {
	routeLogger := log.New(os.Stdout, "ROUTES: ", log.Ldate|log.Ltime|log.Lshortfile)

	authController := controller.NewAuthController(db, log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile))
	capsuleController := controller.NewCapsuleController(db, log.New(os.Stdout, "CAPSULE: ", log.Ldate|log.Ltime|log.Lshortfile))
	fileController := controller.NewCapsuleFileController(db, log.New(os.Stdout, "FILE: ", log.Ldate|log.Ltime|log.Lshortfile))
	collaboratorController := controller.NewCollaboratorController(db, log.New(os.Stdout, "COLLAB: ", log.Ldate|log.Ltime|log.Lshortfile), mailer)
	activityController := controller.NewActivityController(db, log.New(os.Stdout, "ACTIVITY: ", log.Ldate|log.Ltime|log.Lshortfile))
	notificationController := controller.NewNotificationController(db, log.New(os.Stdout, "NOTIFY: ", log.Ldate|log.Ltime|log.Lshortfile))
	userController := controller.NewUserController(db, log.New(os.Stdout, "USER: ", log.Ldate|log.Ltime|log.Lshortfile))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	auth.Post("/register", authController.Register)
	auth.Post("/login", middleware.LoginRateLimiter(), authController.Login)
	auth.Post("/refresh", authController.Refresh)

	auth.Get("/google", authController.GoogleOAuth)
	auth.Get("/google/callback", authController.GoogleOAuthCallback)

	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", authController.Logout)
	protectedAuth.Get("/me", authController.Me)

	api := app.Group("/api/v1")

	// Capsule reads go through OptionalAuth: the handlers decide between
	// a public emergency read and a 401/403.
	capsules := api.Group("/capsules")
	capsules.Get("/", middleware.OptionalAuth(), capsuleController.GetCapsules)
	capsules.Post("/", middleware.Protected(), capsuleController.CreateCapsule)
	capsules.Put("/", middleware.Protected(), capsuleController.UpdateCapsule)
	capsules.Get("/:id/qr", middleware.Protected(), capsuleController.GetEmergencyQR)
	capsules.Get("/:id", middleware.OptionalAuth(), capsuleController.GetCapsule)
	capsules.Delete("/:id", middleware.Protected(), capsuleController.DeleteCapsule)

	files := api.Group("/capsule-files")
	files.Get("/", middleware.OptionalAuth(), fileController.GetFiles)
	files.Post("/", middleware.Protected(), fileController.CreateFile)
	files.Put("/", middleware.Protected(), fileController.UpdateFile)
	files.Delete("/", middleware.Protected(), fileController.DeleteFile)

	collaborators := api.Group("/capsule-collaborators", middleware.Protected())
	collaborators.Get("/", collaboratorController.GetCollaborators)
	collaborators.Post("/", collaboratorController.CreateCollaborator)
	collaborators.Put("/", collaboratorController.UpdateCollaborator)
	collaborators.Delete("/", collaboratorController.DeleteCollaborator)

	activities := api.Group("/capsule-activities", middleware.Protected())
	activities.Get("/", activityController.GetActivities)
	activities.Post("/", activityController.CreateActivity)
	activities.Delete("/", activityController.DeleteActivity)

	notifications := api.Group("/notifications", middleware.Protected())
	notifications.Get("/", notificationController.GetNotifications)
	notifications.Post("/", notificationController.CreateNotification)
	notifications.Get("/unread-count", notificationController.UnreadCount)
	notifications.Patch("/read-all", notificationController.MarkAllRead)
	notifications.Patch("/:id", notificationController.MarkRead)
	notifications.Delete("/:id", notificationController.DeleteNotification)

	users := api.Group("/users", middleware.Protected())
	users.Get("/", userController.GetUsers)
	users.Post("/", userController.CreateUser)
	users.Put("/", userController.UpdateUser)
	users.Delete("/", userController.DeleteUser)

	// Fallback for unknown routes
	app.Use(func(c *fiber.Ctx) error {
		return utils.ErrorResponse(c, fiber.StatusNotFound,
			"Route not found", utils.CodeNotFound)
	})

	routeLogger.Println("Routes initialized successfully")
}
