package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/flashbots/go-utils/httplogger"
	"github.com/flashbots/suapp-supplychain/framework"
	"github.com/flashbots/suapp-supplychain/internal/models"
	"github.com/flashbots/suapp-supplychain/supplychain"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

const (
	pathProducts       = "/products"
	pathProduct        = "/products/{id:[0-9]+}"
	pathShipProduct    = "/products/{id:[0-9]+}/ship"
	pathProductHistory = "/products/{id:[0-9]+}/history"
	pathDeployments    = "/deployments"

	maxBodyBytes = 1 << 16
)

var (
	errServerAlreadyRunning = errors.New("server already running")
	errInvalidID            = errors.New("invalid product id")
	errInvalidPrice         = errors.New("invalid price")
	errInvalidBody          = errors.New("invalid request body")
)

// ProductService is implemented by *supplychain.SupplyChain.
type ProductService interface {
	CreateProduct(ctx context.Context, name, description string, price *uint256.Int) (*big.Int, *types.Receipt, error)
	FetchProduct(ctx context.Context, id *big.Int) (*supplychain.Product, error)
	ShipProduct(ctx context.Context, id *big.Int, newPrice *uint256.Int) (*types.Receipt, error)
}

// Store is implemented by the sqlite repository.
type Store interface {
	ProductHistory(ctx context.Context, chainID uint64, contract common.Address, productID *big.Int) ([]models.ProductEvent, error)
	ListDeployments(ctx context.Context, chainID uint64) ([]framework.Deployment, error)
}

// Service serves the SupplyChain contract over HTTP.
type Service struct {
	listenAddr   string
	log          *logrus.Entry
	mu           sync.Mutex
	srv          *http.Server
	stopped      bool
	products     ProductService
	store        Store
	chainID      uint64
	contractAddr common.Address
}

func NewService(log *logrus.Entry, listenAddr string, products ProductService, store Store, chainID uint64, contractAddr common.Address) *Service {
	return &Service{
		listenAddr:   listenAddr,
		log:          log,
		products:     products,
		store:        store,
		chainID:      chainID,
		contractAddr: contractAddr,
	}
}

// StartHTTPServer blocks until the server is shut down.
func (m *Service) StartHTTPServer() error {
	m.mu.Lock()
	if m.srv != nil {
		m.mu.Unlock()
		return errServerAlreadyRunning
	}
	if m.stopped {
		m.mu.Unlock()
		return nil
	}

	srv := &http.Server{
		Addr:    m.listenAddr,
		Handler: m.getRouter(),

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}
	m.srv = srv
	m.mu.Unlock()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops a running server. A server that was not started yet will
// not start.
func (m *Service) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	srv := m.srv
	m.stopped = true
	m.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (m *Service) getRouter() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", m.handleRoot).Methods(http.MethodGet)
	r.HandleFunc(pathProducts, m.handleCreateProduct).Methods(http.MethodPost)
	r.HandleFunc(pathProduct, m.handleFetchProduct).Methods(http.MethodGet)
	r.HandleFunc(pathShipProduct, m.handleShipProduct).Methods(http.MethodPost)
	r.HandleFunc(pathProductHistory, m.handleProductHistory).Methods(http.MethodGet)
	r.HandleFunc(pathDeployments, m.handleDeployments).Methods(http.MethodGet)

	r.Use(mux.CORSMethodMiddleware(r))
	loggedRouter := httplogger.LoggingMiddlewareLogrus(m.log, r)
	return loggedRouter
}

func (m *Service) handleRoot(w http.ResponseWriter, req *http.Request) {
	m.respondOK(w, map[string]string{
		"contract": m.contractAddr.Hex(),
		"chainId":  new(big.Int).SetUint64(m.chainID).String(),
	})
}

type createProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

type shipProductRequest struct {
	Price string `json:"price"`
}

type productResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	State       string `json:"state"`
	Owner       string `json:"owner"`
}

type txResponse struct {
	ID     string `json:"id,omitempty"`
	TxHash string `json:"txHash"`
}

func newProductResponse(p *supplychain.Product) productResponse {
	return productResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.ToBig().String(),
		State:       p.State.String(),
		Owner:       p.Owner.Hex(),
	}
}

func (m *Service) handleCreateProduct(w http.ResponseWriter, req *http.Request) {
	log := m.log.WithField("method", "createProduct")

	var body createProductRequest
	if err := decodeBody(w, req, &body); err != nil {
		m.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	price, err := parsePrice(body.Price)
	if err != nil {
		m.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, receipt, err := m.products.CreateProduct(req.Context(), body.Name, body.Description, price)
	if err != nil {
		log.WithError(err).Warn("createProduct failed")
		m.respondContractError(w, err)
		return
	}

	m.respond(w, http.StatusCreated, txResponse{ID: id.String(), TxHash: receipt.TxHash.Hex()})
}

func (m *Service) handleFetchProduct(w http.ResponseWriter, req *http.Request) {
	id, err := productID(req)
	if err != nil {
		m.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := m.products.FetchProduct(req.Context(), id)
	if err != nil {
		m.respondContractError(w, err)
		return
	}
	m.respondOK(w, newProductResponse(p))
}

func (m *Service) handleShipProduct(w http.ResponseWriter, req *http.Request) {
	log := m.log.WithField("method", "shipProduct")

	id, err := productID(req)
	if err != nil {
		m.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body shipProductRequest
	if err := decodeBody(w, req, &body); err != nil {
		m.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	price, err := parsePrice(body.Price)
	if err != nil {
		m.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := m.products.ShipProduct(req.Context(), id, price)
	if err != nil {
		log.WithError(err).WithField("id", id.String()).Warn("shipProduct failed")
		m.respondContractError(w, err)
		return
	}
	m.respondOK(w, txResponse{TxHash: receipt.TxHash.Hex()})
}

func (m *Service) handleProductHistory(w http.ResponseWriter, req *http.Request) {
	id, err := productID(req)
	if err != nil {
		m.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := m.store.ProductHistory(req.Context(), m.chainID, m.contractAddr, id)
	if err != nil {
		m.log.WithError(err).Error("failed reading product history")
		m.respondError(w, http.StatusInternalServerError, "failed reading product history")
		return
	}
	if events == nil {
		events = []models.ProductEvent{}
	}
	m.respondOK(w, events)
}

type deploymentResponse struct {
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	TxHash      string    `json:"txHash"`
	Deployer    string    `json:"deployer"`
	BlockNumber uint64    `json:"blockNumber"`
	DeployedAt  time.Time `json:"deployedAt"`
}

func (m *Service) handleDeployments(w http.ResponseWriter, req *http.Request) {
	list, err := m.store.ListDeployments(req.Context(), m.chainID)
	if err != nil {
		m.log.WithError(err).Error("failed listing deployments")
		m.respondError(w, http.StatusInternalServerError, "failed listing deployments")
		return
	}

	resp := make([]deploymentResponse, 0, len(list))
	for _, d := range list {
		resp = append(resp, deploymentResponse{
			Name:        d.Name,
			Address:     d.Address.Hex(),
			TxHash:      d.TxHash.Hex(),
			Deployer:    d.Deployer.Hex(),
			BlockNumber: d.BlockNumber,
			DeployedAt:  d.DeployedAt,
		})
	}
	m.respondOK(w, resp)
}

// respondContractError maps validation errors to 400, an unknown product to
// 404 and any other revert to 409.
func (m *Service) respondContractError(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, supplychain.ErrEmptyName), errors.Is(err, supplychain.ErrZeroPrice):
		m.respondError(w, http.StatusBadRequest, msg)
	case strings.Contains(msg, "unknown product"):
		m.respondError(w, http.StatusNotFound, msg)
	case errors.Is(err, framework.ErrTxReverted), strings.Contains(msg, "execution reverted"):
		m.respondError(w, http.StatusConflict, msg)
	default:
		m.log.WithError(err).Error("contract call failed")
		m.respondError(w, http.StatusInternalServerError, "contract call failed")
	}
}

func (m *Service) respondError(w http.ResponseWriter, code int, message string) {
	m.respond(w, code, httpErrorResp{code, message})
}

func (m *Service) respondOK(w http.ResponseWriter, response any) {
	m.respond(w, http.StatusOK, response)
}

func (m *Service) respond(w http.ResponseWriter, code int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		m.log.WithField("response", response).WithError(err).Error("Couldn't write response")
	}
}

type httpErrorResp struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

func productID(req *http.Request) (*big.Int, error) {
	id, ok := new(big.Int).SetString(mux.Vars(req)["id"], 10)
	if !ok {
		return nil, errInvalidID
	}
	return id, nil
}

func parsePrice(s string) (*uint256.Int, error) {
	price, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errInvalidPrice
	}
	return price, nil
}
