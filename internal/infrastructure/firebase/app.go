package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"tradezone/pkg/config"
	"tradezone/pkg/logger"
)

// ClientOptions picks inline JSON credentials over a credentials file.
// With neither, application default credentials apply.
func ClientOptions(cfg config.FirebaseConfig) []option.ClientOption {
	switch {
	case cfg.CredentialsJSON != "":
		logger.Info("Using Firebase service account from environment variable")
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))}
	case cfg.CredentialsFile != "":
		logger.Info("Using Firebase service account from file: %s", cfg.CredentialsFile)
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
	}
	return nil
}

type App struct {
	app *fbapp.App
	cfg config.FirebaseConfig
}

func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*App, error) {
	app, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.ProjectID}, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase: %w", err)
	}
	return &App{app: app, cfg: cfg}, nil
}

func (a *App) Auth(ctx context.Context) (*fbauth.Client, error) {
	client, err := a.app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}
	return client, nil
}

func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, a.cfg.ProjectID, ClientOptions(a.cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}
