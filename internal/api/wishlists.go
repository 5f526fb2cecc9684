package api

import (
	"context"
	"net/http"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/query"
	"wishlist-bot/internal/wishlist"
)

func (h *Handler) listWishlists(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUint(r, "user_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tid, err := queryInt64(r, "telegram_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	lists, err := h.querySvc.Wishlists(r.Context(), query.WishlistFilter{UserID: userID, TelegramID: tid})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWishlists(lists))
}

// wishlistsByTelegramID differs from the filtered list in that an unknown user is a 404.
func (h *Handler) wishlistsByTelegramID(w http.ResponseWriter, r *http.Request) {
	tid, err := requiredTelegramID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID, err := h.userSvc.ResolveTelegramID(r.Context(), tid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	lists, err := h.querySvc.Wishlists(r.Context(), query.WishlistFilter{UserID: &userID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWishlists(lists))
}

func (h *Handler) createWishlist(w http.ResponseWriter, r *http.Request) {
	p, err := decodePatch(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ownerID, err := h.resolveOwner(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ownerID == nil {
		h.fail(w, r, apperr.Validation("user_id or telegram_id is required"))
		return
	}
	fields, err := decodeWishlistFields(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	wl, err := h.listSvc.Create(r.Context(), *ownerID, fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toWishlist(wl))
}

func (h *Handler) getWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	wl, err := h.listSvc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWishlist(wl))
}

func (h *Handler) updateWishlist(w http.ResponseWriter, r *http.Request) {
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
	fields, err := decodeWishlistFields(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.listSvc.Update(r.Context(), id, fields); err != nil {
		h.fail(w, r, err)
		return
	}
	wl, err := h.listSvc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWishlist(wl))
}

func (h *Handler) deleteWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.listSvc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveOwner reads "user_id" (or "user") and falls back to "telegram_id".
func (h *Handler) resolveOwner(ctx context.Context, p patch) (*uint, error) {
	for _, key := range []string{"user_id", "user"} {
		id, err := bodyID(p, key)
		if err != nil || id != nil {
			return id, err
		}
	}
	tid, err := telegramID(p, "telegram_id")
	if err != nil || tid == nil {
		return nil, err
	}
	id, err := h.userSvc.ResolveTelegramID(ctx, *tid)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func decodeWishlistFields(p patch) (wishlist.Fields, error) {
	var (
		f   wishlist.Fields
		err error
	)
	if f.Name, err = field[string](p, "name"); err != nil {
		return f, err
	}
	if f.Description, err = field[string](p, "description"); err != nil {
		return f, err
	}
	if f.Order, err = field[int](p, "order"); err != nil {
		return f, err
	}
	if f.IsPublic, err = field[bool](p, "is_public"); err != nil {
		return f, err
	}
	if f.IsDefault, err = field[bool](p, "is_default"); err != nil {
		return f, err
	}
	return f, nil
}
