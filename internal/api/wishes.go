package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/models"
	"wishlist-bot/internal/query"
	"wishlist-bot/internal/wish"
)

func (h *Handler) listWishes(w http.ResponseWriter, r *http.Request) {
	f, err := wishFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	wishes, err := h.querySvc.Wishes(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWishes(wishes))
}

func (h *Handler) wishesByTelegramID(w http.ResponseWriter, r *http.Request) {
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
	wishes, err := h.querySvc.Wishes(r.Context(), query.WishFilter{UserID: &userID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWishes(wishes))
}

func (h *Handler) createWish(w http.ResponseWriter, r *http.Request) {
	p, err := decodePatch(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := decodeWishFields(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if f.UserID == nil {
		if f.UserID, err = h.resolveOwner(r.Context(), p); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	created, err := h.wishSvc.Create(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toWish(created))
}

func (h *Handler) getWish(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	found, err := h.wishSvc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWish(found))
}

func (h *Handler) updateWish(w http.ResponseWriter, r *http.Request) {
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
	f, err := decodeWishFields(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.wishSvc.Update(r.Context(), id, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWish(updated))
}

func (h *Handler) deleteWish(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.wishSvc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actorID reads an optional user id from the body or, failing that, the query string.
func actorID(r *http.Request, p patch, key string) (*uint, error) {
	id, err := bodyID(p, key)
	if err != nil || id != nil {
		return id, err
	}
	return queryUint(r, key)
}

func (h *Handler) fulfillWish(w http.ResponseWriter, r *http.Request) {
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
	gifter, err := actorID(r, p, "gifted_by_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fulfilled, err := h.wishSvc.Fulfill(r.Context(), id, gifter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWish(fulfilled))
}

func (h *Handler) unfulfillWish(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	active, err := h.wishSvc.Unfulfill(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWish(active))
}

func (h *Handler) reserveWish(w http.ResponseWriter, r *http.Request) {
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
	reserver, err := actorID(r, p, "reserved_by_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	reserved, err := h.wishSvc.Reserve(r.Context(), id, reserver)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWish(reserved))
}

func (h *Handler) moveWish(w http.ResponseWriter, r *http.Request) {
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
	target, err := bodyID(p, "wishlist_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if target == nil {
		h.fail(w, r, apperr.Validation("wishlist_id is required"))
		return
	}
	moved, err := h.wishSvc.Move(r.Context(), id, *target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWish(moved))
}

func wishFilter(r *http.Request) (query.WishFilter, error) {
	var (
		f   query.WishFilter
		err error
	)
	for key, dst := range map[string]**uint{
		"user_id":        &f.UserID,
		"wishlist_id":    &f.WishlistID,
		"reserved_by_id": &f.ReservedByID,
		"gifted_by_id":   &f.GiftedByID,
	} {
		if *dst, err = queryUint(r, key); err != nil {
			return f, err
		}
	}
	if f.TelegramID, err = queryInt64(r, "telegram_id"); err != nil {
		return f, err
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.WishStatus(raw)
		f.Status = &status
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func decodeWishFields(p patch) (wish.Fields, error) {
	var (
		f   wish.Fields
		err error
	)
	if f.WishlistID, err = bodyID(p, "wishlist"); err != nil {
		return f, err
	}
	if f.WishlistID == nil {
		if f.WishlistID, err = bodyID(p, "wishlist_id"); err != nil {
			return f, err
		}
	}
	if f.UserID, err = bodyID(p, "user"); err != nil {
		return f, err
	}
	for key, dst := range map[string]**string{
		"title":     &f.Title,
		"comment":   &f.Description,
		"link":      &f.Link,
		"image_url": &f.ImageURL,
		"currency":  &f.Currency,
	} {
		if *dst, err = field[string](p, key); err != nil {
			return f, err
		}
	}
	if f.Price, err = field[decimal.NullDecimal](p, "price"); err != nil {
		return f, err
	}
	if f.Order, err = field[int](p, "order"); err != nil {
		return f, err
	}
	if f.Status, err = field[models.WishStatus](p, "status"); err != nil {
		return f, err
	}
	if _, ok := p["reserved_by"]; ok {
		ref := &wish.UserRef{}
		if ref.ID, err = bodyID(p, "reserved_by"); err != nil {
			return f, err
		}
		f.ReservedBy = ref
	}
	return f, nil
}
