package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partsdesk/parts-broker/internal/ai"
	"github.com/partsdesk/parts-broker/internal/brand"
	"github.com/partsdesk/parts-broker/internal/chat"
	"github.com/partsdesk/parts-broker/internal/handler"
	"github.com/partsdesk/parts-broker/internal/notify"
	"github.com/partsdesk/parts-broker/internal/offer"
	"github.com/partsdesk/parts-broker/internal/order"
	"github.com/partsdesk/parts-broker/internal/ranking"
	"github.com/partsdesk/parts-broker/internal/rates"
	"github.com/partsdesk/parts-broker/internal/user"
	"github.com/partsdesk/parts-broker/internal/workflow"
)

// Deps are the process-level singletons the router wires together.
type Deps struct {
	DB        *pgxpool.Pool
	Events    *notify.Publisher
	Hub       *notify.Hub
	Extractor *ai.Client
}

func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get("/ws", deps.Hub.HandleWebSocket)

	userRepo := user.NewRepository(deps.DB)
	orderRepo := order.NewRepository(deps.DB)
	offerRepo := offer.NewRepository(deps.DB)
	ratesRepo := rates.NewRepository(deps.DB)
	brandRepo := brand.NewRepository(deps.DB)
	chatRepo := chat.NewRepository(deps.DB)
	rankingRepo := ranking.NewRepository(deps.DB)

	orderSvc := order.NewService(orderRepo)
	offerSvc := offer.NewService(offerRepo, rates.Markup{Repo: ratesRepo}, deps.Events)
	chatSvc := chat.NewService(chatRepo, deps.Events)
	workflowSvc := workflow.NewService(orderRepo, offerRepo)
	selector := ranking.NewSelector(rankingRepo)

	auth := handler.NewAuth(userRepo)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/session", auth.HandleSession)
		r.Get("/users", auth.HandleListUsers)

		handler.NewOrderHandler(orderSvc, deps.Extractor).RegisterRoutes(r)
		handler.NewOfferHandler(offerSvc).RegisterRoutes(r)
		handler.NewWorkflowHandler(workflowSvc).RegisterRoutes(r)
		handler.NewRankingHandler(selector).RegisterRoutes(r)
		handler.NewBrandHandler(brandRepo).RegisterRoutes(r)
		handler.NewRatesHandler(ratesRepo).RegisterRoutes(r)
		handler.NewChatHandler(chatSvc).RegisterRoutes(r)
	})

	return r
}
