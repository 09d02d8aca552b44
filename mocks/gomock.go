package mocks

//go:generate mockgen -source=./../broadcaster/broadcaster.go -destination=./collabMocks/broadcaster_mock.go -package=collabMocks
//go:generate mockgen -source=./../verifier/verifier.go -destination=./collabMocks/verifier_mock.go -package=collabMocks
