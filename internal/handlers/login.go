package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"Connect/server/internal/models"
	"Connect/server/internal/utils"

	"github.com/golang-jwt/jwt/v4"
)

const maxFailedLoginAttempts = 5

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var loginData struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	err := json.NewDecoder(r.Body).Decode(&loginData)
	if err != nil || loginData.Email == "" || loginData.Password == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	user, err := h.users.GetUserByEmail(ctx, loginData.Email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Printf("User with email %s not found", loginData.Email)
			writeMessage(w, http.StatusUnauthorized, "User not found")
			return
		}
		log.Printf("Error fetching user by email: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.users.IsLocked(user) {
		log.Printf("Account is locked until %v for user %d", user.LockedUntil, user.ID)
		writeMessage(w, http.StatusUnauthorized, "Account is temporarily locked due to multiple failed login attempts")
		return
	}

	if err := utils.CheckPasswordHash(loginData.Password, user.PasswordHash); err != nil {
		log.Printf("Password verification failed for user %d", user.ID)

		updatedUser, err := h.users.IncrementFailedLoginAttempts(ctx, user.ID)
		if err != nil {
			log.Printf("Error incrementing failed login attempts for user %d: %v", user.ID, err)
			writeMessage(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		if updatedUser.FailedAttempts >= maxFailedLoginAttempts {
			if err := h.users.LockAccount(ctx, updatedUser.ID, 5*time.Minute); err != nil {
				log.Printf("Error locking account for user %d: %v", updatedUser.ID, err)
				writeMessage(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			writeMessage(w, http.StatusUnauthorized, "Account is temporarily locked due to multiple failed login attempts")
			return
		}

		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := h.users.ResetFailedLoginAttempts(ctx, user.ID); err != nil {
		log.Printf("Error resetting failed login attempts for user %d: %v", user.ID, err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})

	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		log.Printf("Error creating token for user %d: %v", user.ID, err)
		writeMessage(w, http.StatusInternalServerError, "Token creation error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": tokenString,
		"user":  user,
	})
}
