package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"wagate/internal/constants"
	"wagate/internal/credstore"
	"wagate/internal/engine"
	"wagate/internal/gateway"
	"wagate/internal/logger"
	"wagate/internal/utils"
)

type Server struct {
	Manager *gateway.Manager
	Store   credstore.StoreInterface
	Logger  *logger.Logger
	Port    string
}

func NewServer() (*Server, error) {
	store, err := credstore.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	sessionLog, err := logger.NewLogger(utils.GetEnv("WAGATE_SESSION_ID", "default"))
	if err != nil {
		log.Printf("Warning: Failed to initialize session logger: %v", err)
	} else {
		log.Printf("📝 Session log: %s", sessionLog.GetLogPath())
	}

	cfg := engine.Config{
		BridgeURL:      utils.GetEnv("WAGATE_BRIDGE_URL", constants.DefaultBridgeURL),
		ConnectTimeout: constants.ConnectTimeout,
		Platform:       utils.GetEnv("WAGATE_PLATFORM", constants.DefaultPlatform),
		SkipTLSVerify:  strings.ToLower(utils.GetEnv("WAGATE_SKIP_TLS_VERIFY", "false")) == "true",
	}

	mgr := gateway.NewManager(store, engine.Dial, cfg, sessionLog)
	mgr.SetAddressing(
		os.Getenv("WAGATE_COUNTRY_CODE"),
		os.Getenv("WAGATE_ADDR_SUFFIX"),
	)

	return &Server{
		Manager: mgr,
		Store:   store,
		Logger:  sessionLog,
	}, nil
}

func (s *Server) Run() {
	s.Port = utils.GetEnv("PORT", constants.DefaultPort)

	mux := http.NewServeMux()
	mux.HandleFunc(constants.EndpointInit, s.HandleInit)
	mux.HandleFunc(constants.EndpointStatus, s.HandleStatus)
	mux.HandleFunc(constants.EndpointSend, s.HandleSend)
	mux.HandleFunc(constants.EndpointLogout, s.HandleLogout)
	mux.HandleFunc(constants.EndpointReset, s.HandleReset)

	var handler http.Handler = mux
	handler = RecoveryMiddleware(handler)
	handler = CorsMiddleware(handler)

	h2Handler := h2c.NewHandler(handler, &http2.Server{})

	server := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           h2Handler,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("🚀 wagate server starting on :%s", s.Port)

	if strings.ToLower(utils.GetEnv("WAGATE_AUTO_INIT", "true")) == "true" {
		go s.Manager.Initialize(context.Background())
	}

	<-sigChan
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	s.Cleanup()
	log.Println("✅ Server stopped")
}

func (s *Server) Cleanup() {
	s.Manager.Close()
	if err := s.Store.Close(); err != nil {
		log.Printf("Warning: failed to close credential store: %v", err)
	}
	if s.Logger != nil {
		s.Logger.Close()
	}
}
