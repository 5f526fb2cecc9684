package api

import (
	"time"

	"wishlist-bot/internal/models"
)

type userDTO struct {
	ID               uint    `json:"id"`
	TelegramID       int64   `json:"telegram_id"`
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	Username         string  `json:"username"`
	PhotoURL         string  `json:"photo_url"`
	RegistrationTime string  `json:"registration_time"`
	LastVisit        string  `json:"last_visit"`
	Language         string  `json:"language"`
	ThemeColor       string  `json:"theme_color"`
	InvitedBy        *uint   `json:"invited_by"`
	BirthDate        *string `json:"birth_date"`
	Address          string  `json:"address"`
	Hobbies          string  `json:"hobbies"`
	GiftsGiven       int     `json:"gifts_given"`
	GiftsReceived    int     `json:"gifts_received"`
}

type wishlistDTO struct {
	ID          uint   `json:"id"`
	User        uint   `json:"user"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	IsPublic    bool   `json:"is_public"`
	IsDefault   bool   `json:"is_default"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	WishesCount int64  `json:"wishes_count"`
}

type wishDTO struct {
	ID          uint              `json:"id"`
	Wishlist    uint              `json:"wishlist"`
	User        uint              `json:"user"`
	Title       string            `json:"title"`
	Comment     string            `json:"comment"`
	Link        string            `json:"link"`
	ImageURL    string            `json:"image_url"`
	Price       *string           `json:"price"`
	Currency    string            `json:"currency"`
	Status      models.WishStatus `json:"status"`
	ReservedBy  *uint             `json:"reserved_by"`
	GiftedBy    *uint             `json:"gifted_by"`
	Order       int               `json:"order"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
	ReservedAt  *string           `json:"reserved_at"`
	GiftedAt    *string           `json:"gifted_at"`
	IsFulfilled bool              `json:"is_fulfilled"`
}

func (h *Handler) toUser(u models.User) userDTO {
	dto := userDTO{
		ID:               u.ID,
		TelegramID:       u.TelegramID,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Username:         u.Username,
		PhotoURL:         u.PhotoURL,
		RegistrationTime: models.FormatAPITime(u.RegistrationTime, h.loc),
		LastVisit:        models.FormatAPITime(u.LastVisit, h.loc),
		Language:         u.Language,
		ThemeColor:       u.ThemeColor,
		InvitedBy:        u.InvitedByID,
		Address:          u.Address,
		Hobbies:          u.Hobbies,
		GiftsGiven:       u.GiftsGiven,
		GiftsReceived:    u.GiftsReceived,
	}
	if u.BirthDate != nil {
		bd := u.BirthDate.Format(time.DateOnly)
		dto.BirthDate = &bd
	}
	return dto
}

func (h *Handler) toUsers(list []models.User) []userDTO {
	out := make([]userDTO, 0, len(list))
	for _, u := range list {
		out = append(out, h.toUser(u))
	}
	return out
}

func (h *Handler) toWishlist(wl models.Wishlist) wishlistDTO {
	return wishlistDTO{
		ID:          wl.ID,
		User:        wl.UserID,
		Name:        wl.Name,
		Description: wl.Description,
		Order:       wl.Order,
		IsPublic:    wl.IsPublic,
		IsDefault:   wl.IsDefault,
		CreatedAt:   models.FormatAPITime(wl.CreatedAt, h.loc),
		UpdatedAt:   models.FormatAPITime(wl.UpdatedAt, h.loc),
		WishesCount: wl.WishesCount,
	}
}

func (h *Handler) toWishlists(list []models.Wishlist) []wishlistDTO {
	out := make([]wishlistDTO, 0, len(list))
	for _, wl := range list {
		out = append(out, h.toWishlist(wl))
	}
	return out
}

func (h *Handler) toWish(w models.Wish) wishDTO {
	dto := wishDTO{
		ID:          w.ID,
		Wishlist:    w.WishlistID,
		User:        w.UserID,
		Title:       w.Title,
		Comment:     w.Description,
		Link:        w.Link,
		ImageURL:    w.ImageURL,
		Currency:    w.Currency,
		Status:      w.Status,
		ReservedBy:  w.ReservedByID,
		GiftedBy:    w.GiftedByID,
		Order:       w.Order,
		CreatedAt:   models.FormatAPITime(w.CreatedAt, h.loc),
		UpdatedAt:   models.FormatAPITime(w.UpdatedAt, h.loc),
		ReservedAt:  models.FormatAPITimePtr(w.ReservedAt, h.loc),
		GiftedAt:    models.FormatAPITimePtr(w.GiftedAt, h.loc),
		IsFulfilled: w.Status == models.WishFulfilled,
	}
	if w.Price.Valid {
		price := w.Price.Decimal.StringFixed(2)
		dto.Price = &price
	}
	return dto
}

func (h *Handler) toWishes(list []models.Wish) []wishDTO {
	out := make([]wishDTO, 0, len(list))
	for _, w := range list {
		out = append(out, h.toWish(w))
	}
	return out
}
