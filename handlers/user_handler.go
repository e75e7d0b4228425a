package handlers

import (
	"net/http"

	"github.com/its-tarun-2505/Trashure/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	user, err := h.userService.GetUser(r.Context(), p.UserID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"user": user})
}

// UpdateProfile accepts multipart form fields name, email, phone, address
// and an optional photo file, or the same fields as JSON without the photo.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		fail(w, err)
		return
	}

	var in services.ProfileUpdate
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			fail(w, err)
			return
		}
		in.Name = r.FormValue("name")
		in.Email = r.FormValue("email")
		in.Phone = r.FormValue("phone")
		in.Address = r.FormValue("address")
		photos, err := uploads(r, "photo")
		if err != nil {
			fail(w, err)
			return
		}
		if len(photos) > 0 {
			in.Photo = &photos[0]
		}
	} else {
		var body struct {
			Name    string `json:"name"`
			Email   string `json:"email"`
			Phone   string `json:"phone"`
			Address string `json:"address"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			fail(w, err)
			return
		}
		in = services.ProfileUpdate{Name: body.Name, Email: body.Email, Phone: body.Phone, Address: body.Address}
	}

	user, err := h.userService.UpdateProfile(r.Context(), p.UserID, in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Profile updated", "user": user})
}
