package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"Connect/server/internal/appMiddleware"
	"Connect/server/internal/calls"
	"Connect/server/internal/config"
	"Connect/server/internal/db"
	"Connect/server/internal/handlers"
	"Connect/server/internal/pool"
	"Connect/server/internal/relay"
	"Connect/server/internal/services"
	"Connect/server/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %s\n", err)
	}

	ctx := context.Background()
	if err := db.InitDB(ctx, cfg.DatabaseURL, cfg.ConnectRetries); err != nil {
		log.Fatalf("Failed to init database: %s\n", err)
	}
	defer db.Close()

	store := storage.NewPostgres(db.Pool)
	clock := clockwork.NewRealClock()

	clientPool := pool.NewPool()
	eventRelay := relay.New(clientPool)
	callManager := calls.NewManager(eventRelay, clientPool)
	clientPool.SetUserOfflineListener(callManager.DropUser)

	userService := services.NewUserService(store, clock)
	chatService := services.NewChatService(store)
	messageService := services.NewMessageService(store, eventRelay, clock)

	h := handlers.New(userService, chatService, messageService,
		clientPool, eventRelay, callManager, []byte(cfg.JWTSecret))

	r := chi.NewRouter()

	r.Use(appMiddleware.CorsMiddleware)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.AuthMiddleware([]byte(cfg.JWTSecret)))
		r.Get("/api/profile", h.GetProfile)

		r.Get("/api/users", h.SearchUsers)
		r.Put("/api/users/block", h.BlockUser)
		r.Put("/api/users/unblock", h.UnblockUser)

		r.Post("/api/chats", h.AccessChat)
		r.Get("/api/chats", h.GetChats)
		r.Get("/api/chats/{chat_id}", h.GetChat)
		r.Post("/api/chats/group", h.CreateGroupChat)
		r.Put("/api/chats/group/rename", h.RenameGroup)
		r.Put("/api/chats/group/add", h.AddToGroup)
		r.Put("/api/chats/group/remove", h.RemoveFromGroup)

		r.Get("/api/messages/{chat_id}", h.GetMessages)
		r.Post("/api/messages", h.SendMessage)
		r.Put("/api/messages/read", h.ReadMessages)
		r.Put("/api/messages/unread", h.MarkUnread)
		r.Delete("/api/messages/clear/{chat_id}", h.ClearHistory)
		r.Delete("/api/messages/{id}", h.DeleteMessage)
	})

	r.Get("/ws", h.WebSocket)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	log.Printf("Server started on port %s\n", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %s\n", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	log.Println("Stopping the server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %s\n", err)
	}
	log.Println("Server has been successfully stopped")
}
