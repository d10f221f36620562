package gateway

import (
	"context"

	firebase "firebase.google.com/go/v4"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// FirebaseConfig carries what is needed to reach one Firebase project.
type FirebaseConfig struct {
	CredentialsPath string
	ProjectId       string
	StorageBucket   string
	// Web api key, required by the password sign in endpoints.
	ApiKey string
}

// NewFirebaseApp initializes the Firebase app that every Firebase backed
// adapter is created from.
func NewFirebaseApp(ctx context.Context, cfg FirebaseConfig) (*firebase.App, error) {
	Logger.Log.Infof("[Firebase] initializing app project=%s bucket=%s", cfg.ProjectId, cfg.StorageBucket)

	opts := []option.ClientOption{}
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectId,
		StorageBucket: cfg.StorageBucket,
	}, opts...)
	if err != nil {
		Logger.Log.Errorf("[Firebase][ERROR] failed to init app: %v", err)
		return nil, errors.Wrap(err, "fail to init firebase app")
	}

	Logger.Log.Infoln("[Firebase] app initialized successfully")
	return app, nil
}
