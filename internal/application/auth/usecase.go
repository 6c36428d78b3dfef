package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/comandas-api/internal/application/dto"
	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/access"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
	"github.com/jhoicas/comandas-api/internal/domain/scope"
	"github.com/jhoicas/comandas-api/pkg/jwt"
)

// Config configuración de sesiones y tokens.
type Config struct {
	Secret      string
	Issuer      string
	ExpMinutes  int           // tope absoluto del token
	IdleTimeout time.Duration // inactividad máxima de una sesión
}

// AuthUseCase autoridad de sesiones: login por PIN, actividad, expiración y revocación.
// Cada acción privilegiada debe pasar por Authorize: el estado de la sesión puede quedar
// obsoleto entre acciones porque el tiempo corre en paralelo en varios terminales.
type AuthUseCase struct {
	staffRepo repository.StaffRepository
	venueRepo repository.VenueRepository
	sessions  repository.SessionRepository
	limiter   *PinLimiter
	cfg       Config
	now       func() time.Time
	log       zerolog.Logger
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(
	staffRepo repository.StaffRepository,
	venueRepo repository.VenueRepository,
	sessions repository.SessionRepository,
	limiter *PinLimiter,
	cfg Config,
	log zerolog.Logger,
) *AuthUseCase {
	if limiter == nil {
		limiter = NewPinLimiter(0, 0)
	}
	return &AuthUseCase{
		staffRepo: staffRepo,
		venueRepo: venueRepo,
		sessions:  sessions,
		limiter:   limiter,
		cfg:       cfg,
		now:       time.Now,
		log:       log,
	}
}

// WithClock reemplaza el reloj (tests).
func (uc *AuthUseCase) WithClock(now func() time.Time) *AuthUseCase {
	uc.now = now
	return uc
}

// IdleTimeout inactividad máxima configurada.
func (uc *AuthUseCase) IdleTimeout() time.Duration { return uc.cfg.IdleTimeout }

// Authenticate busca personal activo del local cuyo PIN coincida y abre una sesión.
// Local desconocido, inactivo o PIN sin coincidencia: ErrInvalidCredentials. Solo se
// cuentan fallos contra locales existentes.
func (uc *AuthUseCase) Authenticate(ctx context.Context, venueID, pin string) (*entity.Session, error) {
	now := uc.now()
	if ok, until := uc.limiter.Allow(venueID, now); !ok {
		uc.log.Warn().Str("venue_id", venueID).Time("locked_until", until).Msg("login bloqueado por intentos fallidos")
		return nil, domain.ErrTooManyAttempts
	}

	staff, known, err := uc.matchPin(ctx, venueID, pin)
	if err != nil {
		uc.limiter.Release(venueID)
		return nil, err
	}
	if staff == nil {
		if !known {
			uc.limiter.Release(venueID)
			uc.log.Info().Str("venue_id", venueID).Msg("login contra local desconocido o inactivo")
			return nil, domain.ErrInvalidCredentials
		}
		locked := uc.limiter.Failure(venueID, now)
		uc.log.Info().Str("venue_id", venueID).Bool("locked", locked).Msg("PIN rechazado")
		return nil, domain.ErrInvalidCredentials
	}
	uc.limiter.Success(venueID)

	sess := &entity.Session{
		ID:             uuid.New().String(),
		StaffID:        staff.ID,
		StaffName:      staff.Name,
		VenueID:        venueID,
		Role:           staff.Role,
		Scope:          entity.SingleVenue(venueID),
		IssuedAt:       now,
		LastActivityAt: now,
	}
	if err := uc.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("guardar sesión: %w", err)
	}
	uc.log.Info().
		Str("session_id", sess.ID).
		Str("staff_id", staff.ID).
		Str("venue_id", venueID).
		Str("role", string(staff.Role)).
		Msg("sesión iniciada")
	return sess, nil
}

// matchPin devuelve el personal cuyo PIN coincide. known indica si el local existe y
// está activo.
func (uc *AuthUseCase) matchPin(ctx context.Context, venueID, pin string) (staff *entity.Staff, known bool, err error) {
	if venueID == "" {
		return nil, false, nil
	}
	venue, err := uc.venueRepo.GetByID(ctx, venueID)
	if err != nil {
		return nil, false, err
	}
	if venue == nil || !venue.IsActive {
		return nil, false, nil
	}
	if pin == "" {
		return nil, true, nil
	}
	list, err := uc.staffRepo.ListActiveByVenue(ctx, venueID)
	if err != nil {
		return nil, true, err
	}
	for _, st := range list {
		if !st.Role.Valid() {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(st.PinHash), []byte(pin)) == nil {
			return st, true, nil
		}
	}
	return nil, true, nil
}

// Login autentica y emite el token firmado con la referencia a la sesión.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	sess, err := uc.Authenticate(ctx, in.VenueID, in.PIN)
	if err != nil {
		return nil, err
	}
	token, err := jwt.Generate(uc.cfg.Secret, jwt.Subject{
		SessionID: sess.ID,
		StaffID:   sess.StaffID,
		VenueID:   sess.VenueID,
		Role:      string(sess.Role),
	}, uc.cfg.Issuer, uc.cfg.ExpMinutes)
	if err != nil {
		_ = uc.sessions.Delete(ctx, sess.ID)
		return nil, err
	}
	return &dto.LoginResponse{
		Token:        token,
		Session:      ToSessionResponse(sess),
		DefaultRoute: string(access.DefaultRoute(sess.Role)),
		ExpiresAt:    sess.IssuedAt.Add(time.Duration(uc.cfg.ExpMinutes) * time.Minute),
	}, nil
}

// Touch registra actividad del usuario. Sin caso de error: un fallo del almacén se registra.
func (uc *AuthUseCase) Touch(ctx context.Context, sess *entity.Session) {
	if sess == nil {
		return
	}
	now := uc.now()
	sess.LastActivityAt = now
	if err := uc.sessions.Touch(ctx, sess.ID, now); err != nil {
		uc.log.Error().Err(err).Str("session_id", sess.ID).Msg("registrar actividad")
	}
}

// IsValid true sii la última actividad es más reciente que el timeout configurado.
func (uc *AuthUseCase) IsValid(sess entity.Session) bool {
	return sess.IsValid(uc.now(), uc.cfg.IdleTimeout)
}

// Revoke termina la sesión de inmediato. Idempotente.
func (uc *AuthUseCase) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := uc.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("revocar sesión: %w", err)
	}
	uc.log.Info().Str("session_id", sessionID).Msg("sesión revocada")
	return nil
}

// Logout alias de Revoke para la frontera con la UI.
func (uc *AuthUseCase) Logout(ctx context.Context, sess *entity.Session) error {
	if sess == nil {
		return nil
	}
	return uc.Revoke(ctx, sess.ID)
}

// Resolve devuelve la sesión vigente. Inexistente o expirada: ErrSessionExpired
// (las expiradas se borran al detectarlas).
func (uc *AuthUseCase) Resolve(ctx context.Context, sessionID string) (*entity.Session, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionExpired
	}
	sess, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrSessionExpired
	}
	if !uc.IsValid(*sess) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionExpired
	}
	return sess, nil
}

// Authorize re-valida la sesión contra el almacén y comprueba la capacidad.
// Devuelve la sesión actualizada, que es la que debe usar el comando.
func (uc *AuthUseCase) Authorize(ctx context.Context, sess *entity.Session, capability access.Capability) (*entity.Session, error) {
	if sess == nil {
		return nil, domain.ErrSessionExpired
	}
	current, err := uc.Resolve(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if !access.Can(current.Role, capability) {
		return nil, fmt.Errorf("%w: el rol %s no tiene %s", domain.ErrAccessDenied, current.Role, capability)
	}
	return current, nil
}

// CheckAccess frontera con la UI: nil = permitido.
func (uc *AuthUseCase) CheckAccess(ctx context.Context, sess *entity.Session, capability access.Capability) error {
	_, err := uc.Authorize(ctx, sess, capability)
	return err
}

// EffectiveScope scope efectivo de la sesión (roles operativos siempre fijados a su local).
func (uc *AuthUseCase) EffectiveScope(sess entity.Session) entity.VenueScope {
	return scope.For(sess)
}

// SelectScope aplica la selección de locales pedida por la UI. Los roles operativos no
// reciben error: quedan fijados a su local.
func (uc *AuthUseCase) SelectScope(ctx context.Context, sess *entity.Session, requested entity.VenueScope) (*entity.Session, error) {
	if sess == nil {
		return nil, domain.ErrSessionExpired
	}
	current, err := uc.Resolve(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	venues, err := uc.venueRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(venues))
	for _, v := range venues {
		ids = append(ids, v.ID)
	}
	resolved, err := scope.Resolve(*current, requested, ids)
	if err != nil {
		return nil, err
	}
	if err := uc.sessions.UpdateScope(ctx, current.ID, resolved); err != nil {
		return nil, fmt.Errorf("actualizar scope: %w", err)
	}
	current.Scope = resolved
	return current, nil
}

// SweepExpired borra las sesiones inactivas más allá del timeout.
func (uc *AuthUseCase) SweepExpired(ctx context.Context) (int, error) {
	return uc.sessions.DeleteIdleSince(ctx, uc.now().Add(-uc.cfg.IdleTimeout))
}

// RunExpiryLoop purga sesiones expiradas cada interval hasta cancelar ctx.
func (uc *AuthUseCase) RunExpiryLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := uc.SweepExpired(ctx)
			if err != nil {
				uc.log.Error().Err(err).Msg("purgar sesiones expiradas")
				continue
			}
			if n > 0 {
				uc.log.Debug().Int("expired", n).Msg("sesiones expiradas purgadas")
			}
		}
	}
}

// ToSessionResponse representación persistible en el terminal; nunca lleva el PIN.
func ToSessionResponse(sess *entity.Session) dto.SessionResponse {
	out := dto.SessionResponse{
		StaffID: sess.StaffID,
		Name:    sess.StaffName,
		Role:    string(sess.Role),
	}
	if id, ok := scope.For(*sess).VenueID(); ok {
		out.VenueID = &id
	}
	return out
}

// ToMeResponse sesión actual con datos de actividad.
func ToMeResponse(sess *entity.Session) dto.MeResponse {
	return dto.MeResponse{
		Session:        ToSessionResponse(sess),
		HomeVenueID:    sess.VenueID,
		IssuedAt:       sess.IssuedAt,
		LastActivityAt: sess.LastActivityAt,
		DefaultRoute:   string(access.DefaultRoute(sess.Role)),
	}
}
