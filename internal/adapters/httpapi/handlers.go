package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/marketwin/internal/application"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/labstack/echo/v4"
)

type businessView struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

type accountView struct {
	ID                 domain.AccountID          `json:"id"`
	Name               string                    `json:"name"`
	Email              string                    `json:"email,omitempty"`
	Business           businessView              `json:"business"`
	Plan               domain.PlanID             `json:"plan"`
	Status             domain.SubscriptionStatus `json:"status"`
	ConnectedPlatforms []domain.Platform         `json:"connected_platforms"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

func newAccountView(account domain.Account) accountView {
	platforms := account.Connections.Platforms
	if platforms == nil {
		platforms = []domain.Platform{}
	}
	return accountView{
		ID:                 account.ID,
		Name:               account.Name,
		Email:              account.Email,
		Business:           businessView{Name: account.Business.Name, Type: account.Business.Type},
		Plan:               account.Plan(),
		Status:             domain.EffectiveStatus(account.Subscription),
		ConnectedPlatforms: platforms,
		CreatedAt:          account.CreatedAt,
		UpdatedAt:          account.UpdatedAt,
	}
}

type createAccountRequest struct {
	ID           string `json:"id" validate:"omitempty,max=128"`
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email" validate:"omitempty,email"`
	BusinessName string `json:"business_name" validate:"max=200"`
	BusinessType string `json:"business_type" validate:"max=100"`
	Plan         string `json:"plan"`
}

func (s *Server) createAccount(c echo.Context) error {
	var req createAccountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var plan domain.PlanID
	if req.Plan != "" {
		parsed, err := domain.ParsePlan(req.Plan)
		if err != nil {
			return invalidInput(err)
		}
		plan = parsed
	}

	account, err := s.deps.Accounts.CreateAccount(c.Request().Context(), application.CreateAccountCommand{
		ID:           domain.AccountID(req.ID),
		Name:         req.Name,
		Email:        req.Email,
		BusinessName: req.BusinessName,
		BusinessType: req.BusinessType,
		Plan:         plan,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, newAccountView(account))
}

func (s *Server) listAccounts(c echo.Context) error {
	accounts, err := s.deps.Accounts.ListAccounts(c.Request().Context())
	if err != nil {
		return err
	}

	views := make([]accountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, newAccountView(account))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) getAccount(c echo.Context) error {
	account, err := s.deps.Accounts.GetAccount(c.Request().Context(), accountID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAccountView(account))
}

type subscriptionRequest struct {
	Plan   string `json:"plan"`
	Status string `json:"status" validate:"omitempty,oneof=active inactive cancelled past_due"`
}

func (s *Server) setSubscription(c echo.Context) error {
	var req subscriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	cmd := application.SetSubscriptionCommand{ID: accountID(c), Status: domain.SubscriptionStatus(req.Status)}
	if req.Plan != "" {
		plan, err := domain.ParsePlan(req.Plan)
		if err != nil {
			return invalidInput(err)
		}
		cmd.Plan = plan
	}

	account, err := s.deps.Accounts.SetSubscription(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAccountView(account))
}

func (s *Server) planSummary(c echo.Context) error {
	summary, err := s.deps.Evaluator.PlanSummary(c.Request().Context(), accountID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

type entitlementResponse struct {
	Feature   domain.Feature    `json:"feature"`
	Allowed   bool              `json:"allowed"`
	Reason    domain.DenialCode `json:"reason,omitempty"`
	Plan      domain.PlanID     `json:"plan"`
	Quota     string            `json:"quota"`
	Used      int64             `json:"used"`
	Remaining domain.Remaining  `json:"remaining"`
}

func (s *Server) checkEntitlement(c echo.Context) error {
	feature, err := featureParam(c)
	if err != nil {
		return err
	}

	decision, err := s.deps.Evaluator.Check(c.Request().Context(), accountID(c), feature)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entitlementResponse{
		Feature:   decision.Feature,
		Allowed:   decision.Allowed,
		Reason:    decision.Reason,
		Plan:      decision.Plan,
		Quota:     decision.Quota.String(),
		Used:      decision.Used,
		Remaining: decision.Remaining,
	})
}

type useFeatureRequest struct {
	Input map[string]any `json:"input"`
}

type outcomeResponse struct {
	Feature   domain.Feature                    `json:"feature"`
	Count     int64                             `json:"count"`
	Remaining domain.Remaining                  `json:"remaining"`
	Result    map[string]any                    `json:"result,omitempty"`
	Payloads  map[domain.Platform]domain.Payload `json:"payloads,omitempty"`
}

func (s *Server) useFeature(c echo.Context) error {
	feature, err := featureParam(c)
	if err != nil {
		return err
	}
	if feature == domain.FeatureSocialPosts {
		return invalidInput(fmt.Errorf("%s is metered through POST /v1/accounts/:id/posts", feature))
	}

	var req useFeatureRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	outcome, err := s.deps.Gateway.Use(c.Request().Context(), application.UseFeatureCommand{
		AccountID: accountID(c),
		Feature:   feature,
		Input:     req.Input,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, outcomeResponse{
		Feature:   feature,
		Count:     outcome.Count,
		Remaining: outcome.Remaining,
		Result:    outcome.Result.Output,
	})
}

type publishRequest struct {
	Content   string         `json:"content" validate:"required"`
	Platforms []string       `json:"platforms" validate:"required,min=1,dive,required"`
	Input     map[string]any `json:"input"`
}

func (s *Server) publish(c echo.Context) error {
	var req publishRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		return err
	}

	outcome, err := s.deps.Gateway.Publish(c.Request().Context(), application.PublishCommand{
		AccountID: accountID(c),
		Content:   req.Content,
		Platforms: platforms,
		Input:     req.Input,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, outcomeResponse{
		Feature:   domain.FeatureSocialPosts,
		Count:     outcome.Count,
		Remaining: outcome.Remaining,
		Result:    outcome.Result.Output,
		Payloads:  outcome.Payloads,
	})
}

func (s *Server) connectionStatus(c echo.Context) error {
	statuses, err := s.deps.Registry.Status(c.Request().Context(), accountID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statuses)
}

type connectRequest struct {
	AccessToken  string            `json:"access_token" validate:"required"`
	RefreshToken string            `json:"refresh_token"`
	Identifiers  map[string]string `json:"identifiers"`
	ExpiresAt    *time.Time        `json:"expires_at"`
}

func (s *Server) connect(c echo.Context) error {
	platform, err := domain.ParsePlatform(c.Param("platform"))
	if err != nil {
		return err
	}

	var req connectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	bundle := domain.CredentialBundle{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Identifiers:  req.Identifiers,
		Expiry:       req.ExpiresAt,
	}
	if err := s.deps.Registry.Connect(c.Request().Context(), accountID(c), platform, bundle); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) disconnect(c echo.Context) error {
	platform, err := domain.ParsePlatform(c.Param("platform"))
	if err != nil {
		return err
	}

	if err := s.deps.Registry.Disconnect(c.Request().Context(), accountID(c), platform); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

type previewRequest struct {
	Content   string   `json:"content" validate:"required"`
	Platforms []string `json:"platforms" validate:"required,min=1,dive,required"`
}

func (s *Server) previewDispatch(c echo.Context) error {
	var req previewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		return err
	}

	payloads, err := s.deps.Adapter.Adapt(req.Content, platforms)
	if err != nil {
		return err
	}

	out := make([]domain.Payload, 0, len(payloads))
	for _, platform := range platforms {
		out = append(out, payloads[platform])
	}
	return c.JSON(http.StatusOK, out)
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

func accountID(c echo.Context) domain.AccountID {
	return domain.AccountID(c.Param("id"))
}

func featureParam(c echo.Context) (domain.Feature, error) {
	feature, err := domain.ParseFeature(c.Param("feature"))
	if err != nil {
		return "", invalidInput(err)
	}
	return feature, nil
}

func parsePlatforms(raw []string) ([]domain.Platform, error) {
	platforms := make([]domain.Platform, 0, len(raw))
	for _, name := range raw {
		platform, err := domain.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, platform)
	}
	return platforms, nil
}
