// README: Firebase Admin SDK initialisation; ID-token verifier and FCM push to the driver app.
package infra

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"fleetdesk/internal/domain"
)

// FirebaseToken holds the verified token data used by downstream middleware.
type FirebaseToken struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw Firebase ID token string and returns token data.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

// Firebase bundles the Admin SDK clients the API uses.
type Firebase struct {
	auth *auth.Client
	msg  *messaging.Client
}

var _ TokenVerifier = (*Firebase)(nil)

// NewFirebase initialises the Admin SDK.
// If credentialsFile is non-empty it is used as the service-account JSON path;
// otherwise application-default credentials / GOOGLE_APPLICATION_CREDENTIALS are used.
// projectID is required so the SDK can construct the correct token-verification URL.
func NewFirebase(ctx context.Context, projectID, credentialsFile string) (*Firebase, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Messaging: %w", err)
	}
	return &Firebase{auth: authClient, msg: msgClient}, nil
}

func (f *Firebase) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := f.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &FirebaseToken{UID: token.UID, Claims: token.Claims}, nil
}

// NotifyRouteActivated tells the driver app a manifest is ready to run.
func (f *Firebase) NotifyRouteActivated(ctx context.Context, deviceToken string, r *domain.Route) error {
	if _, err := f.msg.Send(ctx, RouteActivatedMessage(deviceToken, r)); err != nil {
		return fmt.Errorf("sending FCM for route %s: %w", r.ID, err)
	}
	return nil
}

// RouteActivatedMessage builds the FCM payload for an activated route.
func RouteActivatedMessage(deviceToken string, r *domain.Route) *messaging.Message {
	stops := strconv.Itoa(len(r.OrderIDs))
	return &messaging.Message{
		Token: deviceToken,
		Data: map[string]string{
			"type":     "route_activated",
			"route_id": r.ID.String(),
			"stops":    stops,
		},
		Notification: &messaging.Notification{
			Title: "Route ready",
			Body:  "Your route has " + stops + " stops. Open the app to start.",
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
}
