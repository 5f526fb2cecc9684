package api

import (
	"context"
	"net/http"
	"time"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/identity"
	"wishlist-bot/internal/models"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	tid, err := queryInt64(r, "telegram_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	users, err := h.userSvc.List(r.Context(), tid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toUsers(users))
}

func (h *Handler) registerOrGet(w http.ResponseWriter, r *http.Request) {
	p, err := decodePatch(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tid, err := telegramID(p, "telegram_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tid == nil {
		h.fail(w, r, apperr.Validation("telegram_id is required"))
		return
	}
	profile, err := decodeProfile(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, created, err := h.userSvc.GetOrRegister(r.Context(), identity.Registration{
		TelegramID: *tid,
		Profile:    profile,
		StartParam: startParam(p),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, h.toUser(user))
}

func (h *Handler) userByTelegramID(w http.ResponseWriter, r *http.Request) {
	tid, err := requiredTelegramID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.userSvc.GetByTelegramID(r.Context(), tid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toUser(user))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.userSvc.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toUser(user))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := decodePatch(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	upd, err := decodeProfileUpdate(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.userSvc.UpdateProfile(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toUser(user))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.userSvc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	h.followEdge(w, r, h.userSvc.Subscribe)
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.followEdge(w, r, h.userSvc.Unsubscribe)
}

func (h *Handler) followEdge(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, followerID, targetID uint) error) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := decodePatch(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	target, err := bodyID(p, "target_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if target == nil {
		h.fail(w, r, apperr.Validation("target_id is required"))
		return
	}
	if err := apply(r.Context(), id, *target); err != nil {
		h.fail(w, r, err)
		return
	}
	following, err := h.userSvc.Subscriptions(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toUsers(following))
}

func (h *Handler) subscriptions(w http.ResponseWriter, r *http.Request) {
	h.userList(w, r, h.userSvc.Subscriptions)
}

func (h *Handler) subscribers(w http.ResponseWriter, r *http.Request) {
	h.userList(w, r, h.userSvc.Subscribers)
}

func (h *Handler) invitees(w http.ResponseWriter, r *http.Request) {
	h.userList(w, r, h.userSvc.Invitees)
}

func (h *Handler) userList(w http.ResponseWriter, r *http.Request, load func(ctx context.Context, id uint) ([]models.User, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	users, err := load(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toUsers(users))
}

func decodeProfile(p patch) (identity.Profile, error) {
	var (
		prof identity.Profile
		err  error
	)
	for key, dst := range map[string]**string{
		"first_name":  &prof.FirstName,
		"last_name":   &prof.LastName,
		"username":    &prof.Username,
		"photo_url":   &prof.PhotoURL,
		"language":    &prof.Language,
		"theme_color": &prof.ThemeColor,
	} {
		if *dst, err = field[string](p, key); err != nil {
			return identity.Profile{}, err
		}
	}
	return prof, nil
}

func decodeProfileUpdate(p patch) (identity.ProfileUpdate, error) {
	prof, err := decodeProfile(p)
	if err != nil {
		return identity.ProfileUpdate{}, err
	}
	upd := identity.ProfileUpdate{Profile: prof}
	if upd.Address, err = field[string](p, "address"); err != nil {
		return identity.ProfileUpdate{}, err
	}
	if upd.Hobbies, err = field[string](p, "hobbies"); err != nil {
		return identity.ProfileUpdate{}, err
	}
	raw, err := field[string](p, "birth_date")
	if err != nil {
		return identity.ProfileUpdate{}, err
	}
	if raw != nil && *raw != "" {
		bd, err := time.Parse(time.DateOnly, *raw)
		if err != nil {
			return identity.ProfileUpdate{}, apperr.Validation("birth_date must be YYYY-MM-DD")
		}
		upd.BirthDate = &bd
	}
	return upd, nil
}

func requiredTelegramID(r *http.Request) (int64, error) {
	tid, err := queryInt64(r, "telegram_id")
	if err != nil {
		return 0, err
	}
	if tid == nil {
		return 0, apperr.Validation("telegram_id is required")
	}
	return *tid, nil
}
