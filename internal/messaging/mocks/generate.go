// Package mocks provides gomock-generated mock implementations of the messaging interfaces.
// Generated using mockgen from github.com/golang/mock.
package mocks

//go:generate mockgen -destination=mock_publisher.go -package=mocks github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging Publisher
