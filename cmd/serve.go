package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KodaTao/ai-chat/config"
	"github.com/KodaTao/ai-chat/handler"
	"github.com/KodaTao/ai-chat/model"
	"github.com/KodaTao/ai-chat/responder"
	"github.com/KodaTao/ai-chat/service"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE:  runServe,
}

// server 组装后的应用
type server struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	hub    *handler.Hub
	srv    *http.Server
}

func newServer(cfg *config.Config, logger *zap.Logger) (*server, error) {
	gin.SetMode(cfg.Server.Mode)

	db, err := model.InitDB(cfg.Database, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	mock := responder.NewMock(
		time.Duration(cfg.Assistant.DelayMS)*time.Millisecond,
		cfg.Assistant.DefaultLocale,
		0,
	)
	svc := handler.Services{
		Conversations: service.NewConversationService(db),
		Messages:      service.NewMessageService(db, mock),
		Files:         service.NewFileService(db, cfg.Upload),
	}
	hub := handler.NewHub(cfg.WebSocket, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.NewRouter(cfg, svc, hub, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &server{cfg: cfg, logger: logger, db: db, hub: hub, srv: srv}, nil
}

// run 阻塞直到 ctx 取消，然后优雅关闭
func (s *server) run(ctx context.Context) error {
	s.logger.Info("server starting",
		zap.String("addr", s.srv.Addr),
		zap.String("db_driver", s.cfg.Database.Driver),
		zap.String("upload_dir", s.cfg.Upload.Dir),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return multierr.Append(fmt.Errorf("listen: %w", err), model.Close(s.db))
		}
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.hub.Close()
	err := s.srv.Shutdown(shutdownCtx)
	return multierr.Append(err, model.Close(s.db))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.run(ctx)
}
